package messages

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-anon-client/apiclient"
	apperrors "github.com/jrsteele09/go-anon-client/internal/errors"
)

const (
	MaxMessageLength = 500
	MaxReplyLength   = 1000
)

var ErrValidation = apperrors.ErrValidation

// Message is a received anonymous message together with its local marks
type Message struct {
	ID        int64  `json:"id" yaml:"id"`
	Content   string `json:"message_content" yaml:"content"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
	Favorite  bool   `json:"favorite" yaml:"favorite"`
	Archived  bool   `json:"archived" yaml:"archived"`
}

// Created parses CreatedAt. ok is false when the backend sent something unparseable.
func (m Message) Created() (t time.Time, ok bool) {
	t, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
	return t, err == nil
}

type sendRequest struct {
	Message string `json:"message"`
	Email   string `json:"email,omitempty"`
}

type replyRequest struct {
	Reply string `json:"reply"`
}

// Service talks to the message endpoints
type Service struct {
	api   apiclient.Doer
	flags *Flags
}

func NewService(api apiclient.Doer, flags *Flags) *Service {
	return &Service{
		api:   api,
		flags: flags,
	}
}

// Send delivers an anonymous message to recipient. email is optional and lets the
// recipient reply.
func (s *Service) Send(ctx context.Context, recipient, content, email string) error {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return fmt.Errorf("[Service.Send] %w: recipient is required", ErrValidation)
	}
	content, err := checkContent(content, MaxMessageLength)
	if err != nil {
		return fmt.Errorf("[Service.Send] %w", err)
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return fmt.Errorf("[Service.Send] %w: invalid email address", ErrValidation)
		}
	}

	err = s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteNewMessage(recipient),
		Body:   sendRequest{Message: content, Email: email},
	}, nil)
	if err != nil {
		return fmt.Errorf("[Service.Send] %w", err)
	}
	return nil
}

// List returns the messages received by username, newest first
func (s *Service) List(ctx context.Context, username string) ([]Message, error) {
	var received []Message
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   apiclient.RouteRetrieveMessages(username),
	}, &received)
	if err != nil {
		return nil, fmt.Errorf("[Service.List] %w", err)
	}

	// The backend answers oldest first
	list := make([]Message, 0, len(received))
	for i := len(received) - 1; i >= 0; i-- {
		m := received[i]
		m.Favorite = s.flags.IsFavorite(m.ID)
		m.Archived = s.flags.IsArchived(m.ID)
		list = append(list, m)
	}
	return list, nil
}

// Delete removes a message on the backend and forgets its local marks
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodDelete,
		Path:   apiclient.RouteDeleteMessage(id),
	}, nil)
	if err != nil {
		return fmt.Errorf("[Service.Delete] %w", err)
	}
	if err := s.flags.Forget(id); err != nil {
		log.Err(err).Int64("id", id).Msg("Failed to forget flags of deleted message")
	}
	return nil
}

// Reply answers a message whose sender left an email address
func (s *Service) Reply(ctx context.Context, id int64, content string) error {
	content, err := checkContent(content, MaxReplyLength)
	if err != nil {
		return fmt.Errorf("[Service.Reply] %w", err)
	}

	err = s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteReplyMessage(id),
		Body:   replyRequest{Reply: content},
	}, nil)
	if err != nil {
		return fmt.Errorf("[Service.Reply] %w", err)
	}
	return nil
}

func (s *Service) Flags() *Flags {
	return s.flags
}

// ShareLink is the public page where anyone can send username a message
func ShareLink(origin, username string) string {
	return strings.TrimRight(origin, "/") + "/send/" + url.PathEscape(username)
}

func checkContent(content string, limit int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if n := utf8.RuneCountInString(content); n > limit {
		return "", fmt.Errorf("%w: message is %d characters, the limit is %d", ErrValidation, n, limit)
	}
	return content, nil
}
