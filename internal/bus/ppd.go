package bus

import (
	"context"
	"fmt"
	"strings"

	"dynamic_power/internal/logger"
	"dynamic_power/internal/models"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

// Compatibility names of the power-profiles-daemon contract.
const (
	PPDBusName                   = "net.hadess.PowerProfiles"
	PPDPath      dbus.ObjectPath = "/net/hadess/PowerProfiles"
	PPDInterface                 = "net.hadess.PowerProfiles"

	ppdDriver          = "dynamic-power"
	externalPowersaver = "power-saver"

	propActiveProfile        = "ActiveProfile"
	propProfiles             = "Profiles"
	propPerformanceInhibited = "PerformanceInhibited"
	propPerformanceDegraded  = "PerformanceDegraded"
	propActions              = "Actions"
)

// ToExternal spells an internal profile name the way PPD clients expect.
func ToExternal(name string) string {
	if name == models.ProfilePowersave {
		return externalPowersaver
	}
	return name
}

// ToInternal is the inverse of ToExternal.
func ToInternal(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == externalPowersaver {
		return models.ProfilePowersave
	}
	return name
}

func ppdProfiles(names []string) []map[string]dbus.Variant {
	out := make([]map[string]dbus.Variant, 0, len(names))
	for _, n := range names {
		out = append(out, map[string]dbus.Variant{
			"Profile": dbus.MakeVariant(ToExternal(n)),
			"Driver":  dbus.MakeVariant(ppdDriver),
		})
	}
	return out
}

// ppdFacade owns the property table of net.hadess.PowerProfiles.
type ppdFacade struct {
	ctl Controller
	log *logger.Logger
	// written is signaled after every accepted ActiveProfile write.
	written chan struct{}
}

func newPPDFacade(ctl Controller, log *logger.Logger) *ppdFacade {
	return &ppdFacade{ctl: ctl, log: log, written: make(chan struct{}, 1)}
}

// propStore is the part of *prop.Properties the server refreshes.
type propStore interface {
	GetMust(iface, property string) interface{}
	SetMust(iface, property string, v interface{})
}

// setActiveProfile handles a client write of ActiveProfile. Writers through
// this contract are always privileged. prop stores the written value once this
// returns nil, so the server must overwrite it with the applied profile.
func (f *ppdFacade) setActiveProfile(c *prop.Change) *dbus.Error {
	external, ok := c.Value.(string)
	if !ok {
		return prop.ErrInvalidArg
	}
	internal := ToInternal(external)

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	f.log.Infow("ppd_active_profile_set", "external", external, "profile", internal)
	if err := f.ctl.SetProfile(ctx, internal, true); err != nil {
		return dbus.MakeFailedError(fmt.Errorf("set profile %q: %w", internal, err))
	}
	select {
	case f.written <- struct{}{}:
	default:
	}
	return nil
}

func (f *ppdFacade) propMap(s models.PowerState) prop.Map {
	return prop.Map{
		PPDInterface: {
			propActiveProfile: {
				Value:    ToExternal(s.ActiveProfile),
				Writable: true,
				Emit:     prop.EmitTrue,
				Callback: f.setActiveProfile,
			},
			propProfiles: {
				Value:    ppdProfiles(s.Profiles),
				Writable: false,
				Emit:     prop.EmitTrue,
			},
			propPerformanceInhibited: {
				Value:    "",
				Writable: false,
				Emit:     prop.EmitFalse,
			},
			propPerformanceDegraded: {
				Value:    "",
				Writable: false,
				Emit:     prop.EmitFalse,
			},
			propActions: {
				Value:    []string{},
				Writable: false,
				Emit:     prop.EmitFalse,
			},
		},
	}
}

func ppdIntrospection(props *prop.Properties) introspect.Introspectable {
	node := &introspect.Node{
		Name: string(PPDPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       PPDInterface,
				Properties: props.Introspection(PPDInterface),
			},
		},
	}
	return introspect.NewIntrospectable(node)
}
