package blobstore

import "slices"

// Authorize decides whether requester may perform op on the blob described by
// record and its grant set. It is a pure function; requester == Anonymous
// means the caller presented no token.
//
// Rules, first match wins:
//
//  1. Write, ManageACL, Delete: allowed only for the authenticated owner.
//  2. Read: allowed for anyone on a public blob; on a private blob, allowed
//     for the authenticated owner or an authenticated grantee.
func Authorize(record *BlobRecord, grantees []string, requester string, op Operation) bool {
	switch op {
	case OperationWrite, OperationManageACL, OperationDelete:
		return requester != Anonymous && requester == record.Owner
	case OperationRead:
		if record.Visibility == VisibilityPublic {
			return true
		}
		if requester == Anonymous {
			return false
		}
		return requester == record.Owner || slices.Contains(grantees, requester)
	}
	return false
}
