package symcache

import "github.com/crashkit/symbolic/dbgerr"

func errTruncated(what string) error {
	return dbgerr.New(dbgerr.BadDebugFile, "symcache: truncated %s", what)
}

func errBadMagic() error {
	return dbgerr.New(dbgerr.BadFileMagic, "symcache: bad magic")
}
