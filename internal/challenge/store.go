package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/buildingpro/sentinel/internal/models"
)

// answerAlphabet deliberately omits visually ambiguous characters
// (0/O, 1/I/L) since the answer is transcribed by a human.
const answerAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const answerLength = 6

const keyPrefix = "challenge:"

// Challenge is a human-verification puzzle issued before registration
// and login. The answer never leaves the server except through the
// rendered prompt.
type Challenge struct {
	ID     string
	Prompt string
}

// Renderer turns a challenge answer into the prompt shown to the user.
type Renderer interface {
	Render(answer string) (string, error)
}

// TextRenderer renders the answer as obfuscated text. Suitable for
// development and API clients that draw their own puzzle.
type TextRenderer struct{}

func (TextRenderer) Render(answer string) (string, error) {
	return strings.Join(strings.Split(answer, ""), " "), nil
}

// Store issues and verifies single-use challenges backed by Redis.
// GETDEL makes verification consume the answer atomically, so a
// challenge can never be replayed even under concurrent requests.
type Store struct {
	client   *redis.Client
	renderer Renderer
	ttl      time.Duration
}

func NewStore(client *redis.Client, renderer Renderer, ttl time.Duration) *Store {
	return &Store{
		client:   client,
		renderer: renderer,
		ttl:      ttl,
	}
}

// Issue creates a new challenge and stores its answer under a fresh ID.
func (s *Store) Issue(ctx context.Context) (*Challenge, error) {
	answer, err := randomAnswer()
	if err != nil {
		return nil, fmt.Errorf("generating challenge answer: %w", err)
	}

	prompt, err := s.renderer.Render(answer)
	if err != nil {
		return nil, fmt.Errorf("rendering challenge: %w", err)
	}

	id := uuid.New().String()
	if err := s.client.Set(ctx, keyPrefix+id, answer, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("storing challenge: %w", err)
	}

	return &Challenge{ID: id, Prompt: prompt}, nil
}

// Verify consumes the challenge and checks the response. A wrong
// response still burns the challenge; the client must request a new
// one. Comparison is case-insensitive.
func (s *Store) Verify(ctx context.Context, id, response string) error {
	answer, err := s.client.GetDel(ctx, keyPrefix+id).Result()
	if errors.Is(err, redis.Nil) {
		return models.ErrInvalidChallenge
	}
	if err != nil {
		return fmt.Errorf("reading challenge: %w", err)
	}

	if !strings.EqualFold(strings.TrimSpace(response), answer) {
		return models.ErrInvalidChallenge
	}

	return nil
}

func randomAnswer() (string, error) {
	buf := make([]byte, answerLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	out := make([]byte, answerLength)
	for i, b := range buf {
		out[i] = answerAlphabet[int(b)%len(answerAlphabet)]
	}
	return string(out), nil
}
