package etcd

import (
	"path"
	"strings"

	"taskchain-dispatcher/internal/domain"
)

// Keyspace lays out the document store under a root prefix:
//
//	{root}/users/{userId}                                 user profile
//	{root}/users/{userId}/groupReminders/{reminderId}     reminder
//	{root}/groups/{groupId}/messages/{messageId}          message
//	{root}/dispatch-log/{groupId}/{entryId}               dispatch log entry (leased)
//	{root}/dispatcher/...                                 cursor, election, locks, nodes
type Keyspace struct {
	root string
}

// NewKeyspace creates a keyspace rooted at root, e.g. "/taskchain".
func NewKeyspace(root string) Keyspace {
	return Keyspace{root: "/" + strings.Trim(root, "/")}
}

func (k Keyspace) UsersPrefix() string  { return k.root + "/users/" }
func (k Keyspace) GroupsPrefix() string { return k.root + "/groups/" }

func (k Keyspace) Profile(userID string) string {
	return path.Join(k.root, "users", userID)
}

func (k Keyspace) Reminder(userID, reminderID string) string {
	return path.Join(k.root, "users", userID, string(domain.CollectionReminders), reminderID)
}

func (k Keyspace) Message(groupID, messageID string) string {
	return path.Join(k.root, "groups", groupID, string(domain.CollectionMessages), messageID)
}

// Record returns the key of the document a ref points at.
func (k Keyspace) Record(ref domain.RecordRef) string {
	if ref.Kind == domain.RecordKindReminder {
		return k.Reminder(ref.OwnerID, ref.RecordID)
	}
	return k.Message(ref.GroupID, ref.RecordID)
}

// DispatchLogPrefix returns the prefix of a group's log entries. Records without a group share "_".
func (k Keyspace) DispatchLogPrefix(groupID string) string {
	if groupID == "" {
		groupID = "_"
	}
	return path.Join(k.root, "dispatch-log", groupID) + "/"
}

func (k Keyspace) Cursor() string      { return path.Join(k.root, "dispatcher", "cursor") }
func (k Keyspace) Election() string    { return path.Join(k.root, "dispatcher", "leader") }
func (k Keyspace) LockPrefix() string  { return path.Join(k.root, "dispatcher", "locks") + "/" }
func (k Keyspace) NodesPrefix() string { return path.Join(k.root, "dispatcher", "nodes") + "/" }

// ParseRecordKey recognises reminder and message keys. Any other key, including profiles, yields ok=false.
func (k Keyspace) ParseRecordKey(key string) (domain.Collection, domain.PathParams, bool) {
	rest, found := strings.CutPrefix(key, k.root+"/")
	if !found {
		return "", domain.PathParams{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[1] == "" || parts[3] == "" {
		return "", domain.PathParams{}, false
	}
	switch {
	case parts[0] == "users" && parts[2] == string(domain.CollectionReminders):
		return domain.CollectionReminders, domain.PathParams{UserID: parts[1], RecordID: parts[3]}, true
	case parts[0] == "groups" && parts[2] == string(domain.CollectionMessages):
		return domain.CollectionMessages, domain.PathParams{GroupID: parts[1], RecordID: parts[3]}, true
	default:
		return "", domain.PathParams{}, false
	}
}

// isReminderKey reports whether key is a reminder document key.
func (k Keyspace) isReminderKey(key string) bool {
	c, _, ok := k.ParseRecordKey(key)
	return ok && c == domain.CollectionReminders
}
