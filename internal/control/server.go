package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
)

// ReaderManager is the subset of reader-lifecycle operations the control
// socket needs; internal/coreservices supplies the concrete
// implementation backed by internal/reader.
type ReaderManager interface {
	AddReader(ctx context.Context, r types.Reader) error
	RemoveReader(ctx context.Context, nickname string) error
	ConnectReader(ctx context.Context, nickname string) error
	DisconnectReader(ctx context.Context, nickname string) error
	StartReader(ctx context.Context, nickname string) error
	StopReader(ctx context.Context, nickname string) error
	ListReaders(ctx context.Context) ([]types.Reader, error)
}

// UploadControl is the subset of uploader operations the control socket
// needs to drive manual/auto upload toggling (spec §6
// "api_remote_auto_upload", "api_remote_manual_upload").
type UploadControl interface {
	TriggerManualUpload()
	SetAutoUpload(enabled bool)
}

// Server is the operator control socket (spec §6): a line-delimited JSON
// request/response protocol over TCP, with a fixed-size socket registry
// for fan-out.
type Server struct {
	store     storage.Store
	readers   ReaderManager
	uploads   UploadControl
	registry  *Registry
	keepalive func()
}

// NewServer builds a Server. keepalive, if non-nil, is invoked on the
// "quit" command to request daemon shutdown.
func NewServer(store storage.Store, readers ReaderManager, uploads UploadControl, registry *Registry, keepalive func()) *Server {
	return &Server{store: store, readers: readers, uploads: uploads, registry: registry, keepalive: keepalive}
}

// Serve listens on addr and handles operator connections until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listen %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	log.Printf("control: listening on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("control: accept error: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	sk, ok := s.registry.Add(conn)
	if !ok {
		_ = writeJSONLine(conn, response{Command: "connect", OK: false, Error: "MAX_CONNECTED reached"})
		return
	}
	defer s.registry.Remove(sk)

	_ = sk.writeJSON(response{Command: "connect", OK: true})

	reqs, errs := readRequests(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				log.Printf("control: connection read error: %v", err)
			}
		case req, ok := <-reqs:
			if !ok {
				return
			}
			resp := s.dispatch(ctx, sk, req)
			if err := sk.writeJSON(resp); err != nil {
				log.Printf("control: write error: %v", err)
				return
			}
			if req.Command == "quit" || req.Command == "disconnect" {
				return
			}
		}
	}
}

// dispatch implements the command tags enumerated in spec §6. Commands
// this build has no backing operation for (time_set,
// api_results_events_get, api_results_participants_get, reads_delete,
// reads_delete_all) answer with ok=false and an explanatory error rather
// than panicking or silently no-opping.
func (s *Server) dispatch(ctx context.Context, sk *socket, req request) response {
	ok := func(data interface{}) response { return response{Command: req.Command, OK: true, Data: data} }
	fail := func(err error) response { return response{Command: req.Command, OK: false, Error: err.Error()} }

	switch req.Command {
	case "unknown", "":
		return response{Command: "unknown", OK: false, Error: "unrecognized command"}

	case "connect":
		// Distinct from the unsolicited greeting sent on accept: an
		// operator may re-issue "connect" to re-affirm the handshake.
		return ok(nil)

	case "disconnect":
		// Graceful client-initiated hangup, distinct from "quit" (which
		// also requests daemon shutdown). handleConn closes the
		// connection once this response is written.
		return ok(nil)

	case "keepalive_ack":
		return ok(nil)

	case "quit":
		if s.keepalive != nil {
			s.keepalive()
		}
		return ok(nil)

	case "subscribe":
		var p subscribePayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		sk.readRepeater = p.Reads
		sk.sightingRepeater = p.Sightings
		return ok(nil)

	case "time_get":
		return ok(map[string]int64{"unixSeconds": time.Now().Unix()})

	case "time_set":
		// The portal takes device time from the OS; this build does not
		// implement an NTP-like local clock adjustment.
		var p timeSetPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		return fail(fmt.Errorf("time_set: not supported by this build"))

	case "settings_get":
		names := []string{
			types.SettingSightingPeriod, types.SettingPortalName, types.SettingChipType,
			types.SettingReadWindow, types.SettingPlaySound, types.SettingVolume,
			types.SettingVoice, types.SettingZeroConfPort, types.SettingControlPort,
		}
		out := make(map[string]string)
		for _, n := range names {
			if v, err := s.store.GetSetting(ctx, n); err == nil {
				out[n] = v.Value
			}
		}
		return ok(out)

	case "setting_set":
		var p settingSetPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.store.SetSetting(ctx, types.Setting{Name: p.Name, Value: p.Value}); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_add":
		var p readerAddPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		r := types.Reader{Nickname: p.Nickname, Kind: types.ReaderKind(p.Kind), IPAddress: p.IPAddress, Port: p.Port}
		if err := s.readers.AddReader(ctx, r); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_remove":
		var p readerActionPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.readers.RemoveReader(ctx, p.Nickname); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_connect":
		var p readerActionPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.readers.ConnectReader(ctx, p.Nickname); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_disconnect":
		var p readerActionPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.readers.DisconnectReader(ctx, p.Nickname); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_start":
		var p readerActionPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.readers.StartReader(ctx, p.Nickname); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_stop":
		var p readerActionPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.readers.StopReader(ctx, p.Nickname); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reader_list":
		readers, err := s.readers.ListReaders(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(toWireReaders(readers))

	case "api_add":
		var p apiAddPayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		a := types.ResultsApi{Nickname: p.Nickname, Kind: types.ApiKind(p.Kind), Token: p.Token, URI: p.URI}
		if _, err := s.store.SaveAPI(ctx, a); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "api_remove":
		var p apiRemovePayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if err := s.store.DeleteAPI(ctx, p.Nickname); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "api_list":
		apis, err := s.store.GetAPIs(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(apis)

	case "api_remote_manual_upload":
		if s.uploads != nil {
			s.uploads.TriggerManualUpload()
		}
		return ok(nil)

	case "api_remote_auto_upload":
		var p struct {
			Enabled bool `json:"enabled"`
		}
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if s.uploads != nil {
			s.uploads.SetAutoUpload(p.Enabled)
		}
		return ok(nil)

	case "api_results_events_get", "api_results_participants_get":
		// These proxy a remote chronokeep-cloud/self-hosted API's own
		// read-only endpoints; no such upstream client ships in this
		// build (spec §1 only designs the ingest/upload path).
		return fail(fmt.Errorf("%s: not supported by this build", req.Command))

	case "participants_get":
		parts, err := s.store.GetParticipants(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(parts)

	case "participants_remove":
		var p participantRemovePayload
		if err := unmarshalPayload(req, &p); err != nil {
			return fail(err)
		}
		if p.Bib == "" {
			if err := s.store.DeleteParticipants(ctx); err != nil {
				return fail(err)
			}
			return ok(nil)
		}
		if err := s.store.DeleteParticipant(ctx, p.Bib); err != nil {
			return fail(err)
		}
		return ok(nil)

	case "reads_get_all":
		reads, err := s.store.GetUsefulReads(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(toWireReads(reads))

	case "reads_get":
		reads, err := s.store.GetNotUploadedReads(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(toWireReads(reads))

	case "reads_delete_all", "reads_delete":
		// The Store contract (spec §4.A) does not expose a read-delete
		// operation; reads are immutable once persisted except for
		// status/upload transitions made by the Processor and Uploader.
		return fail(fmt.Errorf("%s: not supported by this build", req.Command))

	default:
		return response{Command: "unknown", OK: false, Error: "unrecognized command: " + req.Command}
	}
}

func unmarshalPayload(req request, v interface{}) error {
	if len(req.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", req.Command)
	}
	return json.Unmarshal(req.Payload, v)
}
