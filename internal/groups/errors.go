package groups

import "errors"

var (
	// ErrGroupNotFound indicates no group carries the requested label
	ErrGroupNotFound = errors.New("group not found")

	// ErrDuplicateGroup indicates another group already uses the label
	ErrDuplicateGroup = errors.New("group label already in use")

	// ErrEmptyLabel indicates a blank group label
	ErrEmptyLabel = errors.New("group label must not be empty")

	// ErrDuplicateLight indicates the light is already a member of the group
	ErrDuplicateLight = errors.New("light already in group")

	// ErrLightNotFound indicates the light is not a member of the group
	ErrLightNotFound = errors.New("light not in group")
)
