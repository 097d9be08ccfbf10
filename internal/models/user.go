package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IdentityLink binds a chat user to an external community account. Unique on both sides.
type IdentityLink struct {
	DiscordID  string `json:"discordId" db:"discord_id"`
	RobloxID   int64  `json:"robloxId" db:"roblox_id"`
	RobloxName string `json:"robloxName" db:"-"`
}

// MemberRank records the group rank assigned to a member.
type MemberRank struct {
	DiscordID string    `json:"discordId" db:"discord_id"`
	Rank      string    `json:"rank" db:"rank"`
	SetBy     string    `json:"setBy" db:"set_by"`
	SetAt     time.Time `json:"setAt" db:"set_at"`
}

// ParseSnowflake converts a platform id string to the BIGINT stored in the database.
func ParseSnowflake(id string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid snowflake %q: %w", id, err)
	}
	return v, nil
}
