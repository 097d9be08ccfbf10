// internal/workers/application/verify-identity/models.go
package verifyidentity

import "intake-bot/internal/models"

type Input struct {
	DiscordID      string `json:"discordId"`
	RobloxUsername string `json:"robloxUsername"`
}

type Output struct {
	Link    *models.IdentityLink `json:"link,omitempty"`
	Message string               `json:"message"`
}

const (
	msgVerified    = "Successfully verified as %s!"
	msgNotFound    = "Could not find that Roblox user."
	msgLookupError = "There was an error looking up the Roblox user."
	msgTaken       = "That Roblox account is already linked to another member."
	msgSaveError   = "There was an error saving your verification."
)
