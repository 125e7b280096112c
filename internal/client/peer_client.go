package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"peersync-server/internal/domain"
	"peersync-server/pkg/hash"
)

// PeerClient is the outbound side of the sync protocol. Every request
// carries this node's identity and its derived registration credential.
type PeerClient struct {
	httpClient         *http.Client
	nodeID             string
	registrationSecret string
}

func NewPeerClient(nodeID, registrationSecret string, timeout time.Duration) *PeerClient {
	return &PeerClient{
		httpClient:         &http.Client{Timeout: timeout},
		nodeID:             nodeID,
		registrationSecret: registrationSecret,
	}
}

func (c *PeerClient) Pull(ctx context.Context, peer *domain.PeerRegistration, req *domain.PullRequest) (*domain.PullResponse, error) {
	var resp domain.PullResponse
	if err := c.post(ctx, peer, "/api/v1/sync/pull", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *PeerClient) DeliverSnapshot(ctx context.Context, peer *domain.PeerRegistration, req *domain.SnapshotDeliverRequest) error {
	return c.post(ctx, peer, "/api/v1/sync/snapshot", req, nil)
}

func (c *PeerClient) TriggerRestore(ctx context.Context, peer *domain.PeerRegistration, req *domain.RestoreRequest) (*domain.RestoreResult, error) {
	var result domain.RestoreResult
	if err := c.post(ctx, peer, "/api/v1/sync/restore", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// envelope matches pkg/response.Response with the payload left raw.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *PeerClient) post(ctx context.Context, peer *domain.PeerRegistration, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peer.Address+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Node-ID", c.nodeID)
	req.Header.Set("X-Registration-Hash", hash.RegistrationHash(c.registrationSecret, c.nodeID))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", peer.NodeID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", peer.NodeID, err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("malformed response from %s (status %d): %w", peer.NodeID, resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("peer %s rejected %s: %s", peer.NodeID, path, msg)
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response from %s: %w", peer.NodeID, err)
		}
	}

	return nil
}
