package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpireReservations_Memory(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LOG_SINK", t.TempDir()+"/libraryctl.log")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"expire-reservations"})
	require.NoError(t, root.Execute())
	require.Equal(t, "Expired 0 reservations\n", out.String())
}

func TestUnknownCommand(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"nope"})
	require.Error(t, root.Execute())
}

func TestCreateAdmin_Validation(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("LOG_SINK", t.TempDir()+"/libraryctl.log")

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"create-admin", "--email", "not-an-email", "--password", "secret1"})
	require.Error(t, root.Execute())

	var out bytes.Buffer
	root = newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"create-admin", "--email", "root@example.com", "--password", "secret1"})
	require.NoError(t, root.Execute())
	require.Contains(t, out.String(), "admin ")
}
