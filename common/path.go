package common

import "strings"

// IsWindowsPath reports whether p uses Windows path conventions: a
// drive-letter prefix ("C:"), a UNC prefix ("\\"), or any backslash at all.
func IsWindowsPath(p string) bool {
	if len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':' {
		return true
	}
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	return strings.ContainsRune(p, '\\')
}

func isDriveLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isAbsolute(p string) bool {
	if p == "" {
		return false
	}
	if p[0] == '/' {
		return true
	}
	if strings.HasPrefix(p, `\\`) {
		return true
	}
	if len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':' {
		return true
	}
	return false
}

// isSynthetic reports whether p is a compiler-synthesized pseudo-path such
// as "<built-in>" or "<command-line>", which must never be joined with a
// base directory.
func isSynthetic(p string) bool {
	return strings.HasPrefix(p, "<") && strings.HasSuffix(p, ">")
}

// JoinPath joins base and other the way debug-info path records expect:
// if other is already absolute, UNC, drive-rooted, or a synthetic "<...>"
// name, it is returned unchanged; otherwise it is appended to base using
// whichever separator the two inputs imply.
func JoinPath(base, other string) string {
	if other == "" {
		return base
	}
	if isAbsolute(other) || isSynthetic(other) {
		return other
	}
	if base == "" {
		return other
	}

	sep := "/"
	if IsWindowsPath(base) || IsWindowsPath(other) {
		sep = `\`
	}

	if strings.HasSuffix(base, "/") || strings.HasSuffix(base, `\`) {
		return base + other
	}
	return base + sep + other
}

// CleanPath removes "./" segments and resolves "../" segments without
// crossing the path's root. A ".." that would climb above an absolute root
// is dropped and the root is kept ("/a/../../b" cleans to "/b"); a relative
// path keeps such leading ".." segments.
func CleanPath(p string) string {
	if p == "" {
		return p
	}

	sep := byte('/')
	if IsWindowsPath(p) {
		sep = '\\'
	}

	rooted := len(p) > 0 && p[0] == sep
	var unc string
	rest := p
	if sep == '\\' && strings.HasPrefix(p, `\\`) {
		unc = `\\`
		rest = p[2:]
		rooted = false
	}
	var drive string
	if len(rest) >= 2 && isDriveLetter(rest[0]) && rest[1] == ':' {
		drive = rest[:2]
		rest = rest[2:]
		if len(rest) > 0 && rest[0] == sep {
			rooted = true
		}
	}

	segs := strings.Split(rest, string(sep))
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		switch s {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 && out[len(out)-1] != ".." {
				out = out[:len(out)-1]
			} else if !rooted {
				out = append(out, s)
			}
			// when rooted, a ".." with nothing left to pop is dropped; the
			// root itself is kept.
		default:
			out = append(out, s)
		}
	}

	joined := strings.Join(out, string(sep))
	result := unc + drive
	if rooted {
		result += string(sep)
	}
	result += joined
	if result == "" {
		return "."
	}
	return result
}

// SplitPath splits p into its directory (if any) and base name.
func SplitPath(p string) (dir string, name string) {
	sep := byte('/')
	if IsWindowsPath(p) {
		sep = '\\'
	}
	if i := strings.LastIndexByte(p, sep); i >= 0 {
		return p[:i], p[i+1:]
	}
	return "", p
}

// ShortenPath truncates p to at most max bytes, preferring to keep the file
// name and the start of the path over the middle, matching common
// "...middle-elided..." display conventions. The result is always <= max
// for every max >= 0 (for very small max, this may return a single
// ellipsis or even an empty string).
func ShortenPath(p string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(p) <= max {
		return p
	}

	const ellipsis = "..."
	if max <= len(ellipsis) {
		return ellipsis[:max]
	}

	_, name := SplitPath(p)
	if len(name)+len(ellipsis) >= max {
		// not even room for the full name; just keep the tail.
		return ellipsis + p[len(p)-(max-len(ellipsis)):]
	}

	headRoom := max - len(ellipsis) - len(name)
	return p[:headRoom] + ellipsis + name
}
