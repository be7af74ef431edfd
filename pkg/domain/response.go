package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// GenerateResponse is the body returned by both POST /generate and
// GET /queue/{id}.
type GenerateResponse struct {
	ID   *string   `json:"id,omitempty"`
	Skin *SkinData `json:"skin,omitempty"`
}

// The nested fields are pointers so a skin object missing any of them can be
// told apart from one carrying empty strings.
type SkinData struct {
	Texture *TextureData `json:"texture"`
}

type TextureData struct {
	Data *TextureValue `json:"data"`
}

type TextureValue struct {
	Value     *string `json:"value"`
	Signature *string `json:"signature"`
}

var (
	// ErrEmptyResponse reports a body with neither variant populated.
	ErrEmptyResponse = errors.New("response carries neither skin nor id")
	// ErrIncompleteSkin reports a skin object without texture.data.value and
	// texture.data.signature.
	ErrIncompleteSkin = errors.New("skin is missing texture value or signature")
)

// DecodeResponse parses a service response body. A present but incomplete
// skin is rejected here, so callers only ever see complete artifacts.
func DecodeResponse(body []byte) (GenerateResponse, error) {
	var out GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return GenerateResponse{}, fmt.Errorf("invalid JSON response: %w", err)
	}
	if out.Skin != nil && !out.Skin.complete() {
		return GenerateResponse{}, ErrIncompleteSkin
	}
	return out, nil
}

func (s *SkinData) complete() bool {
	return s.Texture != nil && s.Texture.Data != nil &&
		s.Texture.Data.Value != nil && s.Texture.Data.Signature != nil
}

func (r GenerateResponse) artifact() (Artifact, bool) {
	if r.Skin == nil || !r.Skin.complete() {
		return Artifact{}, false
	}
	return Artifact{
		Texture:   *r.Skin.Texture.Data.Value,
		Signature: *r.Skin.Texture.Data.Signature,
	}, true
}

func (r GenerateResponse) job() (JobHandle, bool) {
	if r.ID == nil || *r.ID == "" {
		return "", false
	}
	return JobHandle(*r.ID), true
}

// Submission interprets the response of a submit call. A populated skin wins
// over an id when both are present.
func (r GenerateResponse) Submission() (SubmissionResult, error) {
	if a, ok := r.artifact(); ok {
		return Immediate(a), nil
	}
	if j, ok := r.job(); ok {
		return Deferred(j), nil
	}
	return SubmissionResult{}, ErrEmptyResponse
}

// Outcome interprets the response of a poll call. Anything without a skin is
// still processing; the service has no failure field in this shape.
func (r GenerateResponse) Outcome() PollOutcome {
	if a, ok := r.artifact(); ok {
		return Resolved(a)
	}
	return StillProcessing()
}
