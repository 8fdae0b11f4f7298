package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAvatar(t *testing.T) {
	tests := []struct {
		name    string
		avatar  Avatar
		level   int
		wantErr bool
	}{
		{name: "empty", avatar: Avatar{}, level: 1},
		{name: "basic outfit", avatar: Avatar{"hair": 3, "face": 2, "dress": 9}, level: 1},
		{name: "unknown slot", avatar: Avatar{"cape": 1}, level: 10, wantErr: true},
		{name: "value too high", avatar: Avatar{"hair": 8}, level: 1, wantErr: true},
		{name: "negative value", avatar: Avatar{"face": -1}, level: 1, wantErr: true},
		{name: "badge below level", avatar: Avatar{"badge": 1}, level: 4, wantErr: true},
		{name: "badge at level", avatar: Avatar{"badge": 1}, level: 5},
		{name: "accessory below level", avatar: Avatar{"accessory": 3}, level: 1, wantErr: true},
		{name: "accessory at level", avatar: Avatar{"accessory": 3}, level: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAvatar(tt.avatar, tt.level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAvatarCloneIsIndependent(t *testing.T) {
	original := Avatar{"hair": 3, UniformColorSlot: 1}
	clone := original.Clone()

	clone["hair"] = 5
	delete(clone, UniformColorSlot)

	assert.Equal(t, 3, original["hair"])
	assert.Equal(t, 1, original[UniformColorSlot])

	require.NotNil(t, Avatar(nil).Clone())
}
