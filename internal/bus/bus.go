// Package bus exposes the control loop on the D-Bus system bus and feeds
// power-source changes from UPower back into it.
package bus

import (
	"context"
	"fmt"

	"dynamic_power/internal/models"

	"github.com/godbus/dbus/v5"
)

const propertiesInterface = "org.freedesktop.DBus.Properties"

// Controller is the part of the service layer the bus objects call into.
type Controller interface {
	GetState(ctx context.Context) (models.PowerState, error)
	Subscribe() (<-chan struct{}, func())
	SetProfile(ctx context.Context, name string, privileged bool) error
	SetThresholds(ctx context.Context, t models.Thresholds) error
	SetPollInterval(ctx context.Context, seconds uint32) error
}

// ConnectError is a failed connection, export, name request or signal
// subscription. The daemon keeps running without the affected surface.
type ConnectError struct {
	Op  string
	Err error
}

func (e *ConnectError) Error() string { return fmt.Sprintf("dbus %s: %v", e.Op, e.Err) }
func (e *ConnectError) Unwrap() error { return e.Err }

// ConnectSystem opens a private connection to the system bus.
func ConnectSystem() (*dbus.Conn, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, &ConnectError{Op: "connect system bus", Err: err}
	}
	return conn, nil
}

func requestName(conn *dbus.Conn, name string) error {
	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return &ConnectError{Op: "request name " + name, Err: err}
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return &ConnectError{Op: "request name " + name, Err: fmt.Errorf("name already owned (reply %d)", reply)}
	}
	return nil
}
