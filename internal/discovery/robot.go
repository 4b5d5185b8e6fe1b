package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Robot is one reply to the discovery probe.
type Robot struct {
	ID              string `json:"id"`
	Address         string `json:"address"`
	Hostname        string `json:"hostname"`
	Name            string `json:"name"`
	MAC             string `json:"mac"`
	SoftwareVersion string `json:"softwareVersion"`
	ProtocolVersion int    `json:"protocolVersion"`
	SKU             string `json:"sku"`
}

type reply struct {
	Ver       *string `json:"ver"`
	Hostname  *string `json:"hostname"`
	RobotName string  `json:"robotname"`
	RobotID   *string `json:"robotid"`
	IP        string  `json:"ip"`
	MAC       string  `json:"mac"`
	SW        string  `json:"sw"`
	SKU       string  `json:"sku"`
}

// ParseReply decodes a probe reply. The id comes from robotid, or else from
// the second dash-separated segment of hostname ("iRobot-<id>").
func ParseReply(data []byte) (Robot, error) {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return Robot{}, fmt.Errorf("%w: %w", ErrMalformedReply, err)
		}
	}

	robot := Robot{
		Name:            r.RobotName,
		Address:         r.IP,
		MAC:             r.MAC,
		SoftwareVersion: r.SW,
		SKU:             r.SKU,
	}
	if r.Hostname != nil {
		robot.Hostname = *r.Hostname
	}
	if r.Ver != nil {
		robot.ProtocolVersion, _ = strconv.Atoi(*r.Ver)
	}

	switch {
	case r.RobotID != nil && *r.RobotID != "":
		robot.ID = *r.RobotID
	case r.Hostname != nil:
		parts := strings.Split(*r.Hostname, "-")
		if len(parts) < 2 || parts[1] == "" {
			return Robot{}, fmt.Errorf("%w: hostname %q has no id", ErrMalformedReply, *r.Hostname)
		}
		robot.ID = parts[1]
	default:
		return Robot{}, fmt.Errorf("%w: no robotid or hostname", ErrMalformedReply)
	}

	return robot, nil
}
