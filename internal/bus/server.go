package bus

import (
	"context"
	"slices"

	"dynamic_power/internal/logger"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/prop"
)

const introspectableInterface = "org.freedesktop.DBus.Introspectable"

// Server publishes the daemon interface and the PPD façade on one connection.
type Server struct {
	conn   *dbus.Conn
	ctl    Controller
	log    *logger.Logger
	daemon *daemonObject
	ppd    *ppdFacade
	props  propStore
}

func NewServer(conn *dbus.Conn, ctl Controller, log *logger.Logger) *Server {
	return &Server{
		conn:   conn,
		ctl:    ctl,
		log:    log,
		daemon: newDaemonObject(ctl, log),
		ppd:    newPPDFacade(ctl, log),
	}
}

// Export registers both objects and claims their names. Failing to claim the
// PPD name is logged and leaves the daemon interface up, since
// power-profiles-daemon itself may own it.
func (s *Server) Export(ctx context.Context) error {
	state, err := s.ctl.GetState(ctx)
	if err != nil {
		return &ConnectError{Op: "read initial state", Err: err}
	}

	if err := s.conn.Export(s.daemon, DaemonPath, DaemonInterface); err != nil {
		return &ConnectError{Op: "export " + DaemonInterface, Err: err}
	}
	if err := s.conn.Export(daemonIntrospection(s.daemon), DaemonPath, introspectableInterface); err != nil {
		return &ConnectError{Op: "export daemon introspection", Err: err}
	}
	if err := requestName(s.conn, DaemonBusName); err != nil {
		return err
	}
	s.log.Infow("dbus_name_acquired", "name", DaemonBusName, "path", DaemonPath)

	props, err := prop.Export(s.conn, PPDPath, s.ppd.propMap(state))
	if err != nil {
		s.log.Warnw("ppd_export_failed", "err", err)
		return nil
	}
	s.props = props

	if err := s.conn.Export(ppdIntrospection(props), PPDPath, introspectableInterface); err != nil {
		s.log.Warnw("ppd_introspection_export_failed", "err", err)
	}
	if err := requestName(s.conn, PPDBusName); err != nil {
		s.log.Warnw("ppd_name_unavailable", "name", PPDBusName, "err", err)
		return nil
	}
	s.log.Infow("dbus_name_acquired", "name", PPDBusName, "path", PPDPath)
	return nil
}

// Run emits PowerStateChanged and refreshes the PPD properties whenever the
// control loop reports a change. After a client write of ActiveProfile only
// the properties are refreshed. It returns when ctx is canceled.
func (s *Server) Run(ctx context.Context) {
	changes, cancel := s.ctl.Subscribe()
	defer cancel()
	defer s.release()

	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			s.publish(ctx)
		case <-s.ppd.written:
			s.refreshPPD(ctx)
		}
	}
}

func (s *Server) publish(ctx context.Context) {
	if err := s.conn.Emit(DaemonPath, DaemonInterface+"."+SignalPowerStateChanged); err != nil {
		s.log.Warnw("dbus_emit_failed", "signal", SignalPowerStateChanged, "err", err)
	}
	s.refreshPPD(ctx)
}

// refreshPPD makes the stored PPD properties match the loop's state. The
// stored ActiveProfile may hold a client's write rather than the applied
// profile, so it is compared against the store, not a cached value.
func (s *Server) refreshPPD(ctx context.Context) {
	if s.props == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	state, err := s.ctl.GetState(cctx)
	if err != nil {
		s.log.Debugw("ppd_refresh_skipped", "err", err)
		return
	}

	active := ToExternal(state.ActiveProfile)
	if stored, _ := s.props.GetMust(PPDInterface, propActiveProfile).(string); stored != active {
		s.props.SetMust(PPDInterface, propActiveProfile, active)
	}
	profiles := ppdProfiles(state.Profiles)
	if stored, _ := s.props.GetMust(PPDInterface, propProfiles).([]map[string]dbus.Variant); !sameProfiles(stored, profiles) {
		s.props.SetMust(PPDInterface, propProfiles, profiles)
	}
}

func sameProfiles(a, b []map[string]dbus.Variant) bool {
	return slices.EqualFunc(a, b, func(x, y map[string]dbus.Variant) bool {
		return x["Profile"].Value() == y["Profile"].Value()
	})
}

func (s *Server) release() {
	for _, name := range []string{DaemonBusName, PPDBusName} {
		if _, err := s.conn.ReleaseName(name); err != nil {
			s.log.Debugw("dbus_release_name_failed", "name", name, "err", err)
		}
	}
}
