package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	private := &BlobRecord{Owner: "alice", Visibility: VisibilityPrivate}
	public := &BlobRecord{Owner: "alice", Visibility: VisibilityPublic}

	tests := []struct {
		name      string
		record    *BlobRecord
		grantees  []string
		requester string
		op        Operation
		want      bool
	}{
		{"owner reads private", private, nil, "alice", OperationRead, true},
		{"owner writes private", private, nil, "alice", OperationWrite, true},
		{"owner deletes private", private, nil, "alice", OperationDelete, true},
		{"owner manages acl", private, nil, "alice", OperationManageACL, true},
		{"grantee reads private", private, []string{"bob"}, "bob", OperationRead, true},
		{"grantee cannot write", private, []string{"bob"}, "bob", OperationWrite, false},
		{"grantee cannot manage acl", private, []string{"bob"}, "bob", OperationManageACL, false},
		{"grantee cannot delete", private, []string{"bob"}, "bob", OperationDelete, false},
		{"stranger cannot read private", private, []string{"bob"}, "carol", OperationRead, false},
		{"anonymous cannot read private", private, nil, Anonymous, OperationRead, false},
		{"anonymous reads public", public, nil, Anonymous, OperationRead, true},
		{"stranger reads public", public, nil, "carol", OperationRead, true},
		{"stranger cannot write public", public, nil, "carol", OperationWrite, false},
		{"anonymous cannot write public", public, nil, Anonymous, OperationWrite, false},
		{"anonymous cannot delete public", public, nil, Anonymous, OperationDelete, false},
		{"unknown operation denied", public, nil, "alice", Operation("sniff"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Authorize(tt.record, tt.grantees, tt.requester, tt.op)
			assert.Equal(t, tt.want, got)
		})
	}
}

// A requester whose name collides with a grantee entry must still be denied
// owner-class operations.
func TestAuthorizeGranteeNamedLikeOwnerOps(t *testing.T) {
	record := &BlobRecord{Owner: "alice", Visibility: VisibilityPrivate}
	assert.False(t, Authorize(record, []string{"bob"}, "bob", OperationDelete))
	assert.True(t, Authorize(record, []string{"bob"}, "bob", OperationRead))
}
