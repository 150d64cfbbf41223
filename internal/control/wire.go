package control

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/chronokeeptiming/portal/internal/remote"
	"github.com/chronokeeptiming/portal/internal/types"
)

// request is the generic envelope for every operator command (spec §6:
// "requests are tagged by \"command\" (snake_case)").
type request struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type response struct {
	Command string      `json:"command"`
	OK      bool        `json:"ok"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type subscribePayload struct {
	Reads     bool `json:"reads"`
	Sightings bool `json:"sightings"`
}

type settingSetPayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type readerAddPayload struct {
	Nickname  string `json:"nickname"`
	Kind      string `json:"kind"`
	IPAddress string `json:"ipAddress"`
	Port      uint16 `json:"port"`
}

type readerActionPayload struct {
	Nickname string `json:"nickname"`
}

type apiAddPayload struct {
	Nickname string `json:"nickname"`
	Kind     string `json:"kind"`
	Token    string `json:"token"`
	URI      string `json:"uri"`
}

type apiRemovePayload struct {
	Nickname string `json:"nickname"`
}

type participantRemovePayload struct {
	Bib string `json:"bib"`
}

type timeSetPayload struct {
	UnixSeconds int64 `json:"unixSeconds"`
}

type wireRead struct {
	ID           int64  `json:"id"`
	Chip         string `json:"chip"`
	IdentType    string `json:"identType"`
	Seconds      int64  `json:"seconds"`
	Milliseconds int    `json:"milliseconds"`
	Reader       string `json:"reader"`
	Status       string `json:"status"`
	Uploaded     bool   `json:"uploaded"`
}

func toWireReads(reads []types.Read) []wireRead {
	out := make([]wireRead, len(reads))
	for i, r := range reads {
		out[i] = wireRead{
			ID: r.ID, Chip: r.Chip, IdentType: r.IdentType.String(),
			Seconds: r.Seconds, Milliseconds: r.Milliseconds,
			Reader: r.Reader, Status: r.Status.String(), Uploaded: r.Uploaded,
		}
	}
	return out
}

type wireSighting struct {
	Bib          string `json:"bib"`
	Chip         string `json:"chip"`
	Seconds      int64  `json:"seconds"`
	Milliseconds int    `json:"milliseconds"`
}

func toWireSightings(sightings []types.Sighting) []wireSighting {
	out := make([]wireSighting, len(sightings))
	for i, s := range sightings {
		out[i] = wireSighting{
			Bib: s.Participant.Bib, Chip: s.Read.Chip,
			Seconds: s.Read.Seconds, Milliseconds: s.Read.Milliseconds,
		}
	}
	return out
}

type wireReaderEntry struct {
	Nickname  string `json:"nickname"`
	Kind      string `json:"kind"`
	IPAddress string `json:"ipAddress"`
	Port      uint16 `json:"port"`
}

func toWireReaders(readers []types.Reader) []wireReaderEntry {
	out := make([]wireReaderEntry, len(readers))
	for i, r := range readers {
		out[i] = wireReaderEntry{Nickname: r.Nickname, Kind: string(r.Kind), IPAddress: r.IPAddress, Port: r.Port}
	}
	return out
}

type sightingsMessage struct {
	Command   string         `json:"command"`
	Sightings []wireSighting `json:"sightings"`
}

type readsMessage struct {
	Command string     `json:"command"`
	Reads   []wireRead `json:"reads"`
}

type readerListMessage struct {
	Command string            `json:"command"`
	Readers []wireReaderEntry `json:"readers"`
}

type uploadStatusMessage struct {
	Command string `json:"command"`
	State   string `json:"state"`
}

// BroadcastUploadStatus implements remote.StatusBroadcaster.
func (r *Registry) BroadcastUploadStatus(ctx context.Context, state remote.UploadState) {
	r.mu.Lock()
	targets := make([]*socket, 0, MaxConnected)
	for _, s := range r.sockets {
		if s != nil {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	msg := uploadStatusMessage{Command: "upload_status", State: state.String()}
	for _, s := range targets {
		_ = s.writeJSON(msg)
	}
}

func writeJSONLine(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func readRequests(conn net.Conn) (<-chan request, <-chan error) {
	reqs := make(chan request)
	errs := make(chan error, 1)
	go func() {
		defer close(reqs)
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			var req request
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				errs <- err
				continue
			}
			reqs <- req
		}
		if err := scanner.Err(); err != nil {
			errs <- err
		}
		close(errs)
	}()
	return reqs, errs
}
