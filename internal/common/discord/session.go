// Package discord holds the chat platform surface the pipeline talks to.
package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Session is the subset of *discordgo.Session the bot uses.
// Tests substitute discordtest.Session.
type Session interface {
	// Messaging
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// Guild membership
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberNickname(guildID, userID, nickname string, options ...discordgo.RequestOption) error
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)

	// Interactions
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

var _ Session = (*discordgo.Session)(nil)

// ErrMemberMissing is returned when the applicant has left the guild.
var ErrMemberMissing = errors.New("MEMBER_NOT_IN_GUILD")

// Mention formats a user mention.
func Mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

// IsForbidden reports a 403 from the REST API.
func IsForbidden(err error) bool {
	return statusOf(err) == http.StatusForbidden
}

// IsNotFound reports a 404 from the REST API.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

func statusOf(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

// SendDM opens a direct channel with userID and sends content.
func SendDM(s Session, userID, content string) error {
	ch, err := s.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := s.ChannelMessageSend(ch.ID, content); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

// FindMember returns the guild member or ErrMemberMissing.
func FindMember(s Session, guildID, userID string) (*discordgo.Member, error) {
	m, err := s.GuildMember(guildID, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrMemberMissing
		}
		return nil, fmt.Errorf("fetch member: %w", err)
	}
	if m == nil {
		return nil, ErrMemberMissing
	}
	return m, nil
}

// InteractionUserID returns the acting user for guild and DM interactions.
func InteractionUserID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
