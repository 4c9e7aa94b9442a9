package database

import (
	"testing"

	modelspkg "blogapi/internal/models"

	"github.com/stretchr/testify/require"
)

func TestPersistentModels_UsersBeforeDependents(t *testing.T) {
	all := PersistentModels()
	require.NotEmpty(t, all)
	_, ok := all[0].(*modelspkg.User)
	require.True(t, ok, "users must be created before tables referencing them")

	found := false
	for _, model := range all {
		if _, ok := model.(*modelspkg.UserProfile); ok {
			found = true
		}
	}
	require.True(t, found, "PersistentModels should include UserProfile")
}
