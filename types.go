package aurorapulse

import (
	"github.com/jpalmerr/aurorapulse/internal/daylight"
	"github.com/jpalmerr/aurorapulse/internal/device"
	"github.com/jpalmerr/aurorapulse/internal/upload"
)

// Reading is one combined measurement: daily cumulative energy in Wh and
// instantaneous input voltage in V.
type Reading = device.Reading

// DeviceAddress identifies the inverter on its bus. It is passed unchanged
// on every device call.
type DeviceAddress = device.Address

// Dialer opens one device connection per session.
type Dialer = device.Dialer

// Conn is a live device connection.
type Conn = device.Conn

// Uploader ships one reading to the collection service.
type Uploader = upload.Uploader

// UploadResult describes a completed upload round trip.
type UploadResult = upload.Result

// Credentials authenticate uploads.
type Credentials = upload.Credentials

// Location is the site used for sunrise and sunset.
type Location = daylight.Location

// SunTimes computes sunrise and sunset in UTC for a date and location.
type SunTimes = daylight.SunTimes

// ErrPeerClosed marks a device connection closed by the remote bridge.
// Sessions that end with it are restarted.
var ErrPeerClosed = device.ErrPeerClosed
