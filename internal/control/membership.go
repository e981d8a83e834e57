package control

import (
	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/reconcile"
)

// AddToGroup moves a discovered light from NotAdded to Added relative to the
// target group. The entry only changes once the document is saved.
func AddToGroup(store *groups.Store, entry *reconcile.Entry, group string) error {
	if err := store.AddLight(group, entry.Light.Entry()); err != nil {
		return err
	}
	entry.State = reconcile.Added
	entry.Group = group
	return nil
}

// RemoveFromGroup moves a light from Added back to NotAdded relative to the
// target group.
func RemoveFromGroup(store *groups.Store, entry *reconcile.Entry, group string) error {
	if err := store.RemoveLight(group, entry.Light.ID); err != nil {
		return err
	}
	entry.State = reconcile.NotAdded
	entry.Group = ""
	return nil
}

// ToggleMembership adds the light when it is not in the group and removes it
// otherwise.
func ToggleMembership(store *groups.Store, entry *reconcile.Entry, group string) error {
	if reconcile.InGroup(store.Snapshot(), group, entry.Light.ID) {
		return RemoveFromGroup(store, entry, group)
	}
	return AddToGroup(store, entry, group)
}
