package policy

// DefaultDelete is the built-in env_delete blacklist: shell loader and
// runtime knobs, dynamic linker controls, language runtime hooks,
// resolver/i18n paths, terminfo/termcap overrides, bash-function
// disguise patterns, and Kerberos/SecurID path variables.
//
// PERLIO_DEBUG is carried here without a trailing space: a literal
// trailing space could never match a real variable name since it has
// no trailing '*', so it's corrected as the typo it is rather than
// preserved.
var DefaultDelete = RuleList{
	"IFS",
	"CDPATH",
	"LOCALDOMAIN",
	"RES_OPTIONS",
	"HOSTALIASES",
	"NLSPATH",
	"PATH_LOCALE",
	"LD_*",
	"_RLD*",
	"DYLD_*",
	"SHLIB_PATH",
	"LDR_*",
	"LIBPATH",
	"AUTHSTATE",
	"KRB5_CONFIG*",
	"KRB5_KTNAME",
	"VAR_ACE",
	"USR_ACE",
	"DLC_ACE",
	"TERMINFO",
	"TERMINFO_DIRS",
	"TERMPATH",
	"TERMCAP",
	"ENV",
	"BASH_ENV",
	"PS4",
	"GLOBIGNORE",
	"BASHOPTS",
	"SHELLOPTS",
	"JAVA_TOOL_OPTIONS",
	"PERLIO_DEBUG",
	"PERLLIB",
	"PERL5LIB",
	"PERL5OPT",
	"PERL5DB",
	"FPATH",
	"NULLCMD",
	"READNULLCMD",
	"ZDOTDIR",
	"TMPPREFIX",
	"PYTHONHOME",
	"PYTHONPATH",
	"PYTHONINSPECT",
	"PYTHONUSERBASE",
	"RUBYLIB",
	"RUBYOPT",
	"BASH_FUNC_*",
	"__BASH_FUNC<*",
}

// DefaultCheck is the built-in env_check list: variables whose values
// must be free of '/' and '%' to be preserved (TZ gets the stricter
// tz_is_sane check instead).
var DefaultCheck = RuleList{
	"COLORTERM",
	"LANG",
	"LANGUAGE",
	"LC_*",
	"LINGUAS",
	"TERM",
	"TZ",
}

// DefaultKeep is the built-in env_keep list: display/session variables
// safe to preserve unconditionally.
var DefaultKeep = RuleList{
	"COLORS",
	"DISPLAY",
	"HOSTNAME",
	"KRB5CCNAME",
	"LS_COLORS",
	"PATH",
	"PS1",
	"PS2",
	"XAUTHORITY",
	"XAUTHORIZATION",
}

// DefaultLists returns a fresh Lists seeded with copies of the
// built-in tables, so callers may append administrator overrides
// without mutating the package-level defaults.
func DefaultLists() Lists {
	return Lists{
		Delete: append(RuleList(nil), DefaultDelete...),
		Check:  append(RuleList(nil), DefaultCheck...),
		Keep:   append(RuleList(nil), DefaultKeep...),
	}
}
