package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/goalhorn/internal/app/dispatch"
	"github.com/osa030/goalhorn/internal/app/playback"
)

const (
	// AdminServiceName is the fully-qualified name of the admin service.
	AdminServiceName = "goalhorn.v1.AdminService"
	// DispatchProcedure dispatches a command token.
	DispatchProcedure = "/" + AdminServiceName + "/Dispatch"
	// GetStatusProcedure returns the board status.
	GetStatusProcedure = "/" + AdminServiceName + "/GetStatus"
)

// Dispatcher runs command tokens.
type Dispatcher interface {
	Dispatch(ctx context.Context, token string)
	Commands() []dispatch.Command
}

// ObserverCounter reports how many observers are connected.
type ObserverCounter interface {
	SubscriberCount() int
}

// AdminService implements the AdminService RPC.
type AdminService struct {
	dispatcher Dispatcher
	board      *playback.Board
	observers  ObserverCounter
}

// NewAdminService creates a new AdminService.
func NewAdminService(dispatcher Dispatcher, board *playback.Board, observers ObserverCounter) *AdminService {
	return &AdminService{
		dispatcher: dispatcher,
		board:      board,
		observers:  observers,
	}
}

// Dispatch runs a command token as if it arrived on the soundboard socket.
func (s *AdminService) Dispatch(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	token := strings.TrimSpace(req.Msg.GetValue())
	if token == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("token is required"))
	}
	zlog.Info().Msgf("admin: dispatch: token=%s", token)
	s.dispatcher.Dispatch(ctx, token)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// GetStatus returns slot states, the loop flag and the observer count.
func (s *AdminService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	slots := make([]any, 0)
	for _, st := range s.board.Snapshot() {
		slots = append(slots, map[string]any{
			"name":    st.Name,
			"clip":    st.Clip,
			"state":   st.State.String(),
			"usable":  st.Usable,
			"audible": st.Audible,
			"fading":  st.Fading,
			"gain_db": st.GainDB,
		})
	}

	commands := make([]any, 0)
	for _, c := range s.dispatcher.Commands() {
		commands = append(commands, c.Token)
	}

	observers := 0
	if s.observers != nil {
		observers = s.observers.SubscriberCount()
	}

	status, err := structpb.NewStruct(map[string]any{
		"loop_engaged": s.board.Loop().Engaged(),
		"observers":    observers,
		"slots":        slots,
		"commands":     commands,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to build status"))
	}
	return connect.NewResponse(status), nil
}

// NewAdminServiceHandler builds an HTTP handler for the service and returns
// the path it should be mounted on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	dispatchHandler := connect.NewUnaryHandler(DispatchProcedure, svc.Dispatch, opts...)
	statusHandler := connect.NewUnaryHandler(GetStatusProcedure, svc.GetStatus, opts...)

	return "/" + AdminServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case DispatchProcedure:
			dispatchHandler.ServeHTTP(w, r)
		case GetStatusProcedure:
			statusHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}
