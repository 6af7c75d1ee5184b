package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/bullion/internal/domain"
	domvs "github.com/kailas-cloud/bullion/internal/domain/vectorstore"
	vectorstoreuc "github.com/kailas-cloud/bullion/internal/usecase/vectorstore"
)

var errInvalidAction = errors.New("invalid action")

// VectorAction handles POST /vector.
func (s *Server) VectorAction(w http.ResponseWriter, r *http.Request) {
	var env vectorEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	cmd, err := decodeCommand(env.Action, env.Data)
	if errors.Is(err, errInvalidAction) {
		writeError(w, http.StatusBadRequest, msgInvalidAction)
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err, msgInternal)
		return
	}

	out, err := s.vectors.Execute(r.Context(), cmd)
	if err != nil {
		s.handleDomainError(w, r, err, msgInternal)
		return
	}

	writeJSON(w, http.StatusOK, vectorResponse{Success: true, Data: vectorPayloadToJSON(out)})
}

// decodeCommand maps the action tag to exactly one command type.
func decodeCommand(action string, data json.RawMessage) (vectorstoreuc.Command, error) {
	switch action {
	case vectorstoreuc.ActionStore:
		var d storeData
		if err := decodeData(data, &d); err != nil {
			return nil, err
		}
		return vectorstoreuc.StoreCommand{Text: d.Text, Embedding: d.Embedding, Metadata: d.Metadata}, nil

	case vectorstoreuc.ActionSearch:
		var d searchData
		if err := decodeData(data, &d); err != nil {
			return nil, err
		}
		return vectorstoreuc.SearchCommand{Embedding: d.QueryEmbedding, Limit: d.Limit, Threshold: d.Threshold}, nil

	case vectorstoreuc.ActionStoreMessage:
		var d storeMessageData
		if err := decodeData(data, &d); err != nil {
			return nil, err
		}
		role, err := domvs.ParseRole(d.Role)
		if err != nil {
			return nil, fmt.Errorf("parse role: %w", err)
		}
		return vectorstoreuc.StoreMessageCommand{
			SessionID: d.SessionID,
			Role:      role,
			Content:   d.Content,
			Embedding: d.Embedding,
		}, nil

	case vectorstoreuc.ActionGetHistory:
		var d historyData
		if err := decodeData(data, &d); err != nil {
			return nil, err
		}
		return vectorstoreuc.GetHistoryCommand{SessionID: d.SessionID}, nil

	case vectorstoreuc.ActionCreateSession:
		var d createSessionData
		if err := decodeData(data, &d); err != nil {
			return nil, err
		}
		return vectorstoreuc.CreateSessionCommand{Title: d.Title}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errInvalidAction, action)
	}
}

// decodeData unmarshals the action payload. Absent or null data decodes as an empty object.
func decodeData(data json.RawMessage, dest any) error {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: invalid data: %w", domain.ErrValidation, err)
	}
	return nil
}
