package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ambulon/internal/body"
	"ambulon/internal/crawler"
	"ambulon/internal/protocol"
	"ambulon/internal/scape"
	"ambulon/internal/trace"
)

const (
	handshakeTimeout = 5 * time.Second
	actTimeout       = 60 * time.Second
	writeTimeout     = 5 * time.Second
)

// Server drives locomotion episodes against a remote policy over a
// websocket: the server streams OBS messages, the policy answers ACT.
type Server struct {
	scape    scape.CrawlerScape
	episodes int
	log      *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(s scape.CrawlerScape, episodes int, logger *log.Logger) *Server {
	if episodes <= 0 {
		episodes = 1
	}
	return &Server{
		scape:    s,
		episodes: episodes,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		hello, ok := s.handshake(conn)
		if !ok {
			return
		}

		variant := s.scape.Variant
		if hello.Variant != "" {
			v, err := crawler.ParseVariant(hello.Variant)
			if err != nil {
				s.sendError(conn, protocol.ErrBadMessage, err.Error())
				return
			}
			variant = v
		}

		partOrder := make([]string, 0, body.PartCount())
		for _, part := range body.Parts() {
			partOrder = append(partOrder, part.String())
		}
		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			SessionID:       uuid.NewString(),
			Variant:         variant.String(),
			ObservationSize: crawler.ObservationSize,
			ActionSize:      crawler.ActionSize,
			PartOrder:       partOrder,
			Episodes:        s.episodes,
		}
		if err := writeJSON(conn, welcome); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		remote := &remoteAgent{
			conn:   conn,
			policy: hello.PolicyName,
		}

		run := s.scape
		run.Variant = variant
		run.OnStep = remote.observeStep

		var rewards []float64
		for episode := 0; episode < s.episodes; episode++ {
			remote.beginEpisode(episode)
			run.Seed = s.scape.Seed + uint64(episode)

			fitness, tr, err := run.EvaluateMode(ctx, remote, "gt")
			if err != nil {
				code := errorCode(err)
				s.sendError(conn, code, err.Error())
				if s.log != nil {
					s.log.Printf("ws episode %d aborted: %v", episode, err)
				}
				if code == protocol.ErrInternal {
					return
				}
				// Action-layer faults abort the episode only; the
				// connection stays up for the remaining episodes.
				continue
			}

			reason, _ := tr["termination_reason"].(string)
			final := protocol.ObsMsg{
				Type:            protocol.TypeObs,
				ProtocolVersion: protocol.Version,
				Episode:         episode,
				Step:            remote.stepCount(),
				Reward:          remote.lastStepReward(),
				Done:            true,
				Reason:          reason,
			}
			if err := writeJSON(conn, final); err != nil {
				return
			}
			rewards = append(rewards, float64(fitness))
		}

		bye := protocol.ByeMsg{
			Type:            protocol.TypeBye,
			ProtocolVersion: protocol.Version,
			Episodes:        len(rewards),
		}
		for i, r := range rewards {
			bye.MeanReward += r
			if i == 0 || r > bye.BestReward {
				bye.BestReward = r
			}
		}
		if len(rewards) > 0 {
			bye.MeanReward /= float64(len(rewards))
		}
		_ = writeJSON(conn, bye)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (protocol.HelloMsg, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return protocol.HelloMsg{}, false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return protocol.HelloMsg{}, false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return protocol.HelloMsg{}, false
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return protocol.HelloMsg{}, false
	}
	if hello.PolicyName == "" {
		hello.PolicyName = "policy"
	}
	return hello, true
}

func (s *Server) sendError(conn *websocket.Conn, code, message string) {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	_ = writeJSON(conn, protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         message,
	})
}

func errorCode(err error) string {
	if errors.Is(err, crawler.ErrActionLength) {
		return protocol.ErrBadAction
	}
	var badAct *badActionError
	if errors.As(err, &badAct) {
		return protocol.ErrBadAction
	}
	var badMsg *badMessageError
	if errors.As(err, &badMsg) {
		return protocol.ErrBadMessage
	}
	return protocol.ErrInternal
}

type badActionError struct{ msg string }

func (e *badActionError) Error() string { return e.msg }

type badMessageError struct{ msg string }

func (e *badMessageError) Error() string { return e.msg }

// remoteAgent adapts the websocket peer to the step-runner contract:
// each RunStep ships the observation out and blocks on the matching ACT.
type remoteAgent struct {
	conn   *websocket.Conn
	policy string

	mu         sync.Mutex
	episode    int
	step       int
	lastReward float64
}

func (a *remoteAgent) ID() string {
	return fmt.Sprintf("remote:%s", a.policy)
}

func (a *remoteAgent) beginEpisode(episode int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.episode = episode
	a.step = 0
	a.lastReward = 0
}

func (a *remoteAgent) observeStep(rec trace.StepRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastReward = rec.Reward
}

func (a *remoteAgent) stepCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.step
}

func (a *remoteAgent) lastStepReward() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReward
}

func (a *remoteAgent) RunStep(ctx context.Context, input []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	episode, step := a.episode, a.step
	reward := a.lastReward
	a.mu.Unlock()

	obs := protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Episode:         episode,
		Step:            step,
		Observations:    input,
		Reward:          reward,
	}
	if err := writeJSON(a.conn, obs); err != nil {
		return nil, err
	}

	_ = a.conn.SetReadDeadline(time.Now().Add(actTimeout))
	for {
		_, msg, err := a.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			return nil, &badMessageError{msg: fmt.Sprintf("malformed message: %v", err)}
		}
		if base.Type != protocol.TypeAct {
			continue
		}
		var act protocol.ActMsg
		if err := json.Unmarshal(msg, &act); err != nil {
			return nil, &badMessageError{msg: fmt.Sprintf("malformed ACT: %v", err)}
		}
		if act.ProtocolVersion != protocol.Version {
			return nil, &badMessageError{msg: fmt.Sprintf("bad protocol_version: %s", act.ProtocolVersion)}
		}
		if act.Episode != episode || act.Step != step {
			return nil, &badActionError{msg: fmt.Sprintf("ACT out of sequence: got episode=%d step=%d want episode=%d step=%d", act.Episode, act.Step, episode, step)}
		}
		for _, v := range act.Actions {
			if v < -1 || v > 1 {
				return nil, &badActionError{msg: fmt.Sprintf("action value out of range: %v", v)}
			}
		}

		a.mu.Lock()
		a.step++
		a.mu.Unlock()
		return act.Actions, nil
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
