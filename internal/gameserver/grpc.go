package gameserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/session"
	"github.com/cory-johannsen/gridbrawl/internal/observability"
)

const (
	serviceName       = "gridbrawl.v1.Match"
	sessionMethodName = "Session"
	// SessionMethod is the full gRPC method name of the session stream.
	SessionMethod = "/" + serviceName + "/" + sessionMethodName
)

// SessionStream is the server side of the bidirectional session.
type SessionStream = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]

// SessionClient is the client side of the bidirectional session.
type SessionClient = grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]

// MatchServer is the gRPC service: one bidirectional stream per client.
// Each message is a google.protobuf.Struct with the JSON intent or event shape.
type MatchServer interface {
	Session(stream SessionStream) error
}

func sessionHandler(srv any, stream grpc.ServerStream) error {
	return srv.(MatchServer).Session(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes the Match service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MatchServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    sessionMethodName,
		Handler:       sessionHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "gridbrawl/v1/match.proto",
}

// OpenSession starts a session stream on cc.
func OpenSession(ctx context.Context, cc grpc.ClientConnInterface, opts ...grpc.CallOption) (SessionClient, error) {
	stream, err := cc.NewStream(ctx, &ServiceDesc.Streams[0], SessionMethod, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}

// GRPCServer implements MatchServer on top of a Dispatcher.
type GRPCServer struct {
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewGRPCServer creates a GRPCServer.
//
// Precondition: dispatcher and logger must be non-nil.
func NewGRPCServer(dispatcher *Dispatcher, logger *zap.Logger) *GRPCServer {
	return &GRPCServer{dispatcher: dispatcher, logger: logger}
}

// Register adds the Match service to gs.
func (s *GRPCServer) Register(gs *grpc.Server) {
	gs.RegisterService(&ServiceDesc, s)
}

// Session implements the bidirectional streaming RPC.
// Flow:
//  1. Register a session under a fresh player ID and greet the client
//  2. Spawn goroutine to forward outbox events to the stream
//  3. Main loop: read intents and dispatch them
//  4. On disconnect: leave the room and drop the session
func (s *GRPCServer) Session(stream SessionStream) error {
	uid := uuid.NewString()
	logger := observability.ClientLogger(s.logger, uid, "grpc")

	sess, err := s.dispatcher.Connect(uid)
	if err != nil {
		return fmt.Errorf("registering session: %w", err)
	}
	defer s.dispatcher.Disconnect(uid)
	logger.Info("client connected")

	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		s.forwardEvents(ctx, sess.Outbox, stream, logger)
	}()

	err = s.intentLoop(ctx, uid, stream, logger)

	cancel()
	wg.Wait()
	logger.Info("client disconnected")

	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (s *GRPCServer) intentLoop(ctx context.Context, uid string, stream SessionStream, logger *zap.Logger) error {
	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("receiving intent: %w", err)
		}
		in, err := intentFromStruct(msg)
		if err != nil {
			logger.Debug("malformed intent", zap.Error(err))
			s.dispatcher.ReportError(uid, "", err)
			continue
		}
		if in.Type == event.IntentDisconnect {
			return nil
		}
		in.PlayerID = uid
		s.dispatcher.Dispatch(ctx, in)
	}
}

func (s *GRPCServer) forwardEvents(ctx context.Context, outbox *session.Outbox, stream SessionStream, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-outbox.Events():
			if !ok {
				return
			}
			msg, err := structFromJSON(data)
			if err != nil {
				logger.Error("converting event", zap.Error(err))
				continue
			}
			if err := stream.Send(msg); err != nil {
				logger.Debug("forward event send failed", zap.Error(err))
				return
			}
		}
	}
}
