// Package discord posts moderation alerts to a staff channel. Best effort:
// a failed alert is logged and dropped, never surfaced to the request path.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/krn-labs/gripeboard/src/api/types"
)

type Notifier struct {
	session   *discordgo.Session
	channelID string
}

func NewNotifier(token, channelID string) (*Notifier, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord token and channel required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Notifier{session: s, channelID: channelID}, nil
}

// PostFlagged announces a post that crossed the flag threshold.
func (n *Notifier) PostFlagged(post types.Post) error {
	excerpt := post.Message
	if len(excerpt) > 180 {
		excerpt = excerpt[:180] + "..."
	}
	_, err := n.session.ChannelMessageSendEmbed(n.channelID, &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Post %d crossed the flag threshold", post.ID),
		Description: excerpt,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Flags", Value: fmt.Sprintf("%d", post.FlagCount), Inline: true},
			{Name: "Stars", Value: fmt.Sprintf("%d", post.StarCount), Inline: true},
		},
	})
	return err
}
