package system

import (
	"errors"
	"fmt"
	"io/fs"
	"os/user"
	"strconv"
)

// ownership maps between numeric IDs and account names.
type ownership interface {
	ids(info fs.FileInfo) (uid, gid uint32, err error)
	userName(uid uint32) (string, error)
	groupName(gid uint32) (string, error)
	userID(name string) (int, error)
	groupID(name string) (int, error)
}

type osOwnership struct{}

// userName falls back to the numeric ID for accounts without a passwd entry,
// the way ls does.
func (osOwnership) userName(uid uint32) (string, error) {
	id := strconv.FormatUint(uint64(uid), 10)
	u, err := user.LookupId(id)
	var unknown user.UnknownUserIdError
	if errors.As(err, &unknown) {
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup uid %s: %w", id, err)
	}
	return u.Username, nil
}

func (osOwnership) groupName(gid uint32) (string, error) {
	id := strconv.FormatUint(uint64(gid), 10)
	g, err := user.LookupGroupId(id)
	var unknown user.UnknownGroupIdError
	if errors.As(err, &unknown) {
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup gid %s: %w", id, err)
	}
	return g.Name, nil
}

func (osOwnership) userID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	u, err := user.Lookup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup user %q: %w", name, err)
	}
	return strconv.Atoi(u.Uid)
}

func (osOwnership) groupID(name string) (int, error) {
	if id, err := strconv.Atoi(name); err == nil {
		return id, nil
	}
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, fmt.Errorf("lookup group %q: %w", name, err)
	}
	return strconv.Atoi(g.Gid)
}
