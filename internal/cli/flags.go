package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/doridoridoriand/holdwatch/internal/config"
)

// OptionalDuration records a duration flag and whether it was set.
type OptionalDuration struct {
	value time.Duration
	set   bool
}

func (o *OptionalDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalDuration) String() string {
	if !o.set {
		return ""
	}
	return o.value.String()
}

func (o *OptionalDuration) Type() string { return "duration" }

func (o *OptionalDuration) Value() (time.Duration, bool) {
	return o.value, o.set
}

// OptionalInt records an int flag and whether it was set.
type OptionalInt struct {
	value int
	set   bool
}

func (o *OptionalInt) Set(s string) error {
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalInt) String() string {
	if !o.set {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *OptionalInt) Type() string { return "int" }

func (o *OptionalInt) Value() (int, bool) {
	return o.value, o.set
}

// OptionalString records a string flag and whether it was set.
type OptionalString struct {
	value string
	set   bool
}

func (o *OptionalString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

func (o *OptionalString) String() string {
	if !o.set {
		return ""
	}
	return o.value
}

func (o *OptionalString) Type() string { return "string" }

func (o *OptionalString) Value() (string, bool) {
	return o.value, o.set
}

// OptionalBool records a bool flag and whether it was set.
type OptionalBool struct {
	value bool
	set   bool
}

func (o *OptionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = v
	o.set = true
	return nil
}

func (o *OptionalBool) String() string {
	if !o.set {
		return ""
	}
	if o.value {
		return "true"
	}
	return "false"
}

func (o *OptionalBool) IsBoolFlag() bool {
	return true
}

func (o *OptionalBool) Type() string { return "bool" }

func (o *OptionalBool) Value() (bool, bool) {
	return o.value, o.set
}

// OptionalMode records a history mode flag and whether it was set.
type OptionalMode struct {
	value config.Mode
	set   bool
}

func (o *OptionalMode) Set(s string) error {
	switch config.Mode(s) {
	case config.ModeRotating, config.ModeSeries:
	default:
		return fmt.Errorf("invalid mode %q (want %s or %s)", s, config.ModeRotating, config.ModeSeries)
	}
	o.value = config.Mode(s)
	o.set = true
	return nil
}

func (o *OptionalMode) String() string {
	if !o.set {
		return ""
	}
	return string(o.value)
}

func (o *OptionalMode) Type() string { return "mode" }

func (o *OptionalMode) Value() (config.Mode, bool) {
	return o.value, o.set
}
