package common

// Mangling describes whether a Name's raw string is a mangled symbol, an
// already-demangled/display name, or unknown.
type Mangling int

const (
	ManglingUnknown Mangling = iota
	Mangled
	Unmangled
)

// Language is the closed set of source languages a Name may originate from.
// Demangling itself is out of scope for this toolkit (see peripherals.Demangler);
// Language only records provenance so a caller-supplied demangler can be
// dispatched to correctly.
type Language int

const (
	LangUnknown Language = iota
	LangC
	LangCpp
	LangD
	LangGo
	LangObjc
	LangObjcpp
	LangRust
	LangSwift
	LangCsharp
	LangVisualBasic
	LangFsharp
)

var languageNames = map[Language]string{
	LangUnknown:     "unknown",
	LangC:           "c",
	LangCpp:         "cpp",
	LangD:           "d",
	LangGo:          "go",
	LangObjc:        "objc",
	LangObjcpp:      "objcpp",
	LangRust:        "rust",
	LangSwift:       "swift",
	LangCsharp:      "csharp",
	LangVisualBasic: "visualbasic",
	LangFsharp:      "fsharp",
}

func (l Language) String() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return "unknown"
}

// LanguageFromDwarf maps a DW_LANG_* constant to our closed Language
// enumeration. DWARF defines many more languages than we distinguish; any
// code that doesn't have a direct Breakpad/SymCache equivalent collapses to
// LangUnknown rather than failing.
func LanguageFromDwarf(code int64) Language {
	switch code {
	case 0x0001, 0x0002, 0x0c, 0x1d, 0x2c: // DW_LANG_C89/C/C99/C11/C17 family
		return LangC
	case 0x0004, 0x0019, 0x001a, 0x0021, 0x002a, 0x002b: // DW_LANG_C_plus_plus and friends
		return LangCpp
	case 0x0013: // DW_LANG_D
		return LangD
	case 0x0016: // DW_LANG_Go
		return LangGo
	case 0x0010: // DW_LANG_ObjC
		return LangObjc
	case 0x0011: // DW_LANG_ObjC_plus_plus
		return LangObjcpp
	case 0x001c: // DW_LANG_Rust
		return LangRust
	case 0x001e: // DW_LANG_Swift
		return LangSwift
	default:
		return LangUnknown
	}
}

// Name is a symbol's raw string together with enough provenance to decide
// whether (and how) it should be demangled.
type Name struct {
	Raw      string
	Mangling Mangling
	Language Language
}

// NewName builds a Name, inferring a mangling state heuristically from the
// common cross-language mangling prefixes when the caller doesn't already
// know it (e.g. public-symbol tables give us only the raw string).
func NewName(raw string, lang Language) Name {
	return Name{Raw: raw, Mangling: inferMangling(raw), Language: lang}
}

func inferMangling(raw string) Mangling {
	switch {
	case len(raw) == 0:
		return ManglingUnknown
	case len(raw) > 2 && raw[:2] == "_Z": // Itanium C++ ABI
		return Mangled
	case len(raw) > 1 && raw[0] == '?': // MSVC C++
		return Mangled
	case len(raw) > 4 && raw[:4] == "_rnv": // Rust v0 legacy prefix family isn't common
		return Mangled
	default:
		return ManglingUnknown
	}
}

func (n Name) String() string { return n.Raw }
