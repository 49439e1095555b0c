package errors

func InvalidPath(err error, path string) error {
	return newError(ErrBadPath, err, "invalid path '%s'", path)
}

func PathTooLong(path string, max int) error {
	return newError(ErrBadPath, nil, "path '%s' exceeds %d bytes", path, max)
}

func PathEscapesRoot(path string) error {
	return newError(ErrBadPath, nil, "path '%s' escapes the storage root", path)
}

func PathIsContainer(path string) error {
	return newError(ErrBadPath, nil, "path '%s' is a container", path)
}

func PathBelowItem(path, item string) error {
	return newError(ErrBadPath, nil, "path '%s' is nested below item '%s'", path, item)
}

func PathOverlaps(dest, src string) error {
	return newError(ErrBadPath, nil, "paths '%s' and '%s' overlap", dest, src)
}

func PathNotFound(err error, path string) error {
	return newError(ErrNotFound, err, "nothing stored at '%s'", path)
}

func DestinationNotEmpty(path string) error {
	return newError(ErrNotEmpty, nil, "'%s'", path)
}

func NothingTracked() error {
	return newError(ErrNotFound, nil, "no tracked records to export")
}
