// Package discordtest provides an in-memory discord.Session for tests.
package discordtest

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type SentMessage struct {
	ChannelID string
	Content   string
	Embeds    []*discordgo.MessageEmbed
}

type RoleAdd struct {
	GuildID string
	UserID  string
	RoleID  string
}

type Followup struct {
	Interaction *discordgo.Interaction
	Params      *discordgo.WebhookParams
}

type Edit struct {
	Interaction *discordgo.Interaction
	Edit        *discordgo.WebhookEdit
}

type Response struct {
	Interaction *discordgo.Interaction
	Response    *discordgo.InteractionResponse
}

// Session records every call. Error fields inject failures.
type Session struct {
	mu sync.Mutex

	Members    map[string]*discordgo.Member
	Roles      []*discordgo.Role
	Commands   []*discordgo.ApplicationCommand
	Messages   []SentMessage
	Deleted    []string
	RoleAdds   []RoleAdd
	Nicknames  map[string]string
	Responses  []Response
	Edits      []Edit
	Followups  []Followup
	DMChannels map[string]string

	SendErr     map[string]error
	DMErr       error
	MemberErr   error
	RoleAddErr  error
	NicknameErr error
	RolesErr    error
}

func NewSession() *Session {
	return &Session{
		Members:    make(map[string]*discordgo.Member),
		Nicknames:  make(map[string]string),
		DMChannels: make(map[string]string),
		SendErr:    make(map[string]error),
	}
}

// AddMember puts a user in the guild.
func (s *Session) AddMember(userID string, roleIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Members[userID] = &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: roleIDs}
}

// RESTError builds the error discordgo returns for an HTTP status.
func RESTError(status int) error {
	return &discordgo.RESTError{
		Response:     &http.Response{StatusCode: status, Status: http.StatusText(status)},
		ResponseBody: []byte(fmt.Sprintf(`{"message":"%s","code":0}`, http.StatusText(status))),
	}
}

func (s *Session) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{Content: content})
}

func (s *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.SendErr[channelID]; err != nil {
		return nil, err
	}
	s.Messages = append(s.Messages, SentMessage{ChannelID: channelID, Content: data.Content, Embeds: data.Embeds})
	return &discordgo.Message{ID: fmt.Sprintf("m%d", len(s.Messages)), ChannelID: channelID, Content: data.Content}, nil
}

func (s *Session) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, channelID+"/"+messageID)
	return nil
}

func (s *Session) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DMErr != nil {
		return nil, s.DMErr
	}
	id := "dm-" + recipientID
	s.DMChannels[recipientID] = id
	return &discordgo.Channel{ID: id, Type: discordgo.ChannelTypeDM}, nil
}

func (s *Session) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MemberErr != nil {
		return nil, s.MemberErr
	}
	m, ok := s.Members[userID]
	if !ok {
		return nil, RESTError(http.StatusNotFound)
	}
	return m, nil
}

func (s *Session) GuildMemberRoleAdd(guildID, userID, roleID string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RoleAddErr != nil {
		return s.RoleAddErr
	}
	s.RoleAdds = append(s.RoleAdds, RoleAdd{GuildID: guildID, UserID: userID, RoleID: roleID})
	if m, ok := s.Members[userID]; ok {
		m.Roles = append(m.Roles, roleID)
	}
	return nil
}

func (s *Session) GuildMemberNickname(_, userID, nickname string, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NicknameErr != nil {
		return s.NicknameErr
	}
	s.Nicknames[userID] = nickname
	if m, ok := s.Members[userID]; ok {
		m.Nick = nickname
	}
	return nil
}

func (s *Session) GuildRoles(_ string, _ ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RolesErr != nil {
		return nil, s.RolesErr
	}
	return s.Roles, nil
}

func (s *Session) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, Response{Interaction: i, Response: resp})
	return nil
}

func (s *Session) InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Edits = append(s.Edits, Edit{Interaction: i, Edit: edit})
	return &discordgo.Message{}, nil
}

func (s *Session) FollowupMessageCreate(i *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Followups = append(s.Followups, Followup{Interaction: i, Params: data})
	return &discordgo.Message{Content: data.Content}, nil
}

func (s *Session) ApplicationCommandBulkOverwrite(_ string, _ string, commands []*discordgo.ApplicationCommand, _ ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Commands = commands
	return commands, nil
}

// MessagesIn returns what was posted to channelID.
func (s *Session) MessagesIn(channelID string) []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SentMessage
	for _, m := range s.Messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

// FollowupTexts returns followup contents in order.
func (s *Session) FollowupTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.Followups))
	for _, f := range s.Followups {
		out = append(out, f.Params.Content)
	}
	return out
}

// RolesOf returns the role ids added to userID.
func (s *Session) RolesOf(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ra := range s.RoleAdds {
		if ra.UserID == userID {
			out = append(out, ra.RoleID)
		}
	}
	return out
}

// ResponsesSnapshot copies the recorded interaction responses.
func (s *Session) ResponsesSnapshot() []Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Response(nil), s.Responses...)
}

// EditsSnapshot copies the recorded response edits.
func (s *Session) EditsSnapshot() []Edit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Edit(nil), s.Edits...)
}

// DeletedSnapshot copies the deleted "channel/message" ids.
func (s *Session) DeletedSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Deleted...)
}

// FollowupsSnapshot copies the recorded followups.
func (s *Session) FollowupsSnapshot() []Followup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Followup(nil), s.Followups...)
}
