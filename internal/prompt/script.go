package prompt

import (
	"context"
	"fmt"
)

// Script is a Driver that replays canned answers in order. Inputs and
// passwords draw from Answers, confirmations from Confirms. Running out of
// answers returns ErrAborted.
type Script struct {
	Answers  []string
	Confirms []bool

	// Asked records every prompt message in the order shown.
	Asked []string
}

var _ Driver = (*Script)(nil)

func (s *Script) Input(ctx context.Context, cfg InputConfig) (string, error) {
	return s.next(ctx, cfg)
}

func (s *Script) Password(ctx context.Context, cfg InputConfig) (string, error) {
	return s.next(ctx, cfg)
}

func (s *Script) Confirm(ctx context.Context, cfg ConfirmConfig) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.Asked = append(s.Asked, cfg.Message)
	if len(s.Confirms) == 0 {
		return false, ErrAborted
	}
	out := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return out, nil
}

func (s *Script) next(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.Asked = append(s.Asked, cfg.Message)
	if len(s.Answers) == 0 {
		return "", ErrAborted
	}
	out := s.Answers[0]
	s.Answers = s.Answers[1:]
	if cfg.Validator != nil {
		if err := cfg.Validator(out); err != nil {
			return "", fmt.Errorf("prompt: answer %q rejected: %w", out, err)
		}
	}
	return out, nil
}
