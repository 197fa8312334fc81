package ws

import (
	"errors"

	"github.com/kailas-cloud/cinesim/internal/domain"
	"github.com/kailas-cloud/cinesim/internal/domain/modality"
	"github.com/kailas-cloud/cinesim/internal/domain/suggest"
	"github.com/kailas-cloud/cinesim/internal/domain/weights"
	"github.com/kailas-cloud/cinesim/internal/session"
	"github.com/kailas-cloud/cinesim/internal/transport/api"
	"github.com/kailas-cloud/cinesim/internal/usecase/similar"
)

// Outgoing message types.
const (
	messageSnapshot = "snapshot"
	messageError    = "error"
)

// eventMessage is one UI event sent by the client.
type eventMessage struct {
	Type    string       `json:"type"`
	Text    string       `json:"text,omitempty"`
	Key     string       `json:"key,omitempty"`
	ItemID  string       `json:"item_id,omitempty"`
	Axis    string       `json:"axis,omitempty"`
	Value   float64      `json:"value,omitempty"`
	Weights *api.Weights `json:"weights,omitempty"`
}

func (m eventMessage) toEvent() session.Event {
	ev := session.Event{
		Type:   session.EventType(m.Type),
		Text:   m.Text,
		Key:    suggest.Key(m.Key),
		ItemID: m.ItemID,
		Axis:   modality.Axis(m.Axis),
		Value:  m.Value,
	}
	if m.Weights != nil {
		// The session validates the simplex.
		ev.Weights = weights.Reconstruct(m.Weights.Narrative, m.Weights.Visual, m.Weights.Audio)
	}
	return ev
}

type errorMessage struct {
	Type    string        `json:"type"`
	Code    api.ErrorCode `json:"code"`
	Message string        `json:"message"`
}

func newErrorMessage(err error) errorMessage {
	code := api.ErrorCodeInternalError
	msg := "internal error"
	for _, m := range []struct {
		sentinel error
		code     api.ErrorCode
	}{
		{domain.ErrInvalidWeights, api.ErrorCodeInvalidWeights},
		{domain.ErrInvalidQuery, api.ErrorCodeInvalidQuery},
		{domain.ErrNotFound, api.ErrorCodeNotFound},
		{session.ErrClosed, api.ErrorCodeBadRequest},
	} {
		if errors.Is(err, m.sentinel) {
			code, msg = m.code, err.Error()
			break
		}
	}
	return errorMessage{Type: messageError, Code: code, Message: msg}
}

type searchState struct {
	Text       string     `json:"text"`
	Generation uint64     `json:"generation"`
	Source     string     `json:"source,omitempty"`
	Items      []api.Item `json:"items"`
	Open       bool       `json:"open"`
	Focused    bool       `json:"focused"`
	Highlight  int        `json:"highlight"`
}

type resultState struct {
	Item         api.Item       `json:"item"`
	Similarity   float64        `json:"similarity"`
	Similarities modality.Score `json:"similarities"`
}

type similarityState struct {
	Generation uint64        `json:"generation"`
	Reference  *api.Item     `json:"reference"`
	Weights    api.Weights   `json:"weights"`
	Results    []resultState `json:"results"`
	Loading    bool          `json:"loading"`
}

type snapshotMessage struct {
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	Search     searchState     `json:"search"`
	Similarity similarityState `json:"similarity"`
}

func newSnapshotMessage(s session.Snapshot) snapshotMessage {
	items := make([]api.Item, len(s.Search.Items))
	for i, it := range s.Search.Items {
		items[i] = api.ItemFromDomain(it).Preview()
	}

	var ref *api.Item
	if s.Similarity.Reference != nil {
		r := api.ItemFromDomain(*s.Similarity.Reference)
		ref = &r
	}

	return snapshotMessage{
		Type:      messageSnapshot,
		SessionID: s.ID,
		Search: searchState{
			Text:       s.Search.Text,
			Generation: s.Search.Generation,
			Source:     string(s.Search.Source),
			Items:      items,
			Open:       s.Search.Open,
			Focused:    s.Search.Focused,
			Highlight:  s.Search.Highlight,
		},
		Similarity: similarityState{
			Generation: s.Similarity.Generation,
			Reference:  ref,
			Weights:    api.WeightsFromDomain(s.Similarity.Weights),
			Results:    resultsToState(s.Similarity.Results),
			Loading:    s.Similarity.Loading,
		},
	}
}

func resultsToState(results []similar.RankedResult) []resultState {
	out := make([]resultState, len(results))
	for i, r := range results {
		out[i] = resultState{
			Item:         api.ItemFromDomain(r.Item).Preview(),
			Similarity:   r.Overall,
			Similarities: r.Breakdown,
		}
	}
	return out
}
