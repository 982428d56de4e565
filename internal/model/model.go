package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Session{},
	&Tick{},
	&Event{},
}

// Session is one recorded run of the plugin, opened on initialize
type Session struct {
	ID            uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	CreatedAt     time.Time `json:"createdAt"`
	StartedAt     time.Time `json:"startedAt" gorm:"index:idx_session_started_at"`
	Route         string    `json:"route" gorm:"size:127"`
	InitMode      string    `json:"initMode" gorm:"size:31"`
	PluginVersion string    `json:"pluginVersion" gorm:"size:63"`
	PowerNotches  int       `json:"powerNotches"`
	BrakeNotches  int       `json:"brakeNotches"`
	B67Notch      int       `json:"b67Notch"`
	AtsNotch      int       `json:"atsNotch"`
	Cars          int       `json:"cars"`
}

func (*Session) TableName() string {
	return "sessions"
}

// Tick is one control cycle. Time is simulation seconds.
type Tick struct {
	ID        uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint    `json:"sessionId" gorm:"index:idx_tick_session_time,priority:1"`
	Session   Session `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      float64 `json:"time" gorm:"index:idx_tick_session_time,priority:2"`

	Location    float64 `json:"location"`
	SpeedKmh    float64 `json:"speedKmh"`
	TargetSpeed float64 `json:"targetSpeed"`
	SafetySpeed float64 `json:"safetySpeed"`

	Power    int            `json:"power"`
	Brake    int            `json:"brake"`
	Reverser int            `json:"reverser"`
	Final    int            `json:"final"`
	Demands  datatypes.JSON `json:"demands"`

	SelectedMode string `json:"selectedMode" gorm:"size:31"`
	ActualMode   string `json:"actualMode" gorm:"size:31;index:idx_tick_actual_mode"`
	ATOPhase     string `json:"atoPhase" gorm:"size:31"`
	ATPState     string `json:"atpState" gorm:"size:31"`
	Doors        string `json:"doors" gorm:"size:15"`

	Longitude *float64   `json:"longitude"`
	Latitude  *float64   `json:"latitude"`
	Position  geom.Point `json:"position"` // EPSG:3857, empty without a route
}

func (*Tick) TableName() string {
	return "ticks"
}

// Event is a discrete controller event such as a trip or a mode commit
type Event struct {
	ID        uint    `json:"id" gorm:"primarykey;autoIncrement;"`
	SessionID uint    `json:"sessionId" gorm:"index:idx_event_session_time,priority:1"`
	Session   Session `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	Time      float64 `json:"time" gorm:"index:idx_event_session_time,priority:2"`

	Kind     string  `json:"kind" gorm:"size:31;index:idx_event_kind"`
	Location float64 `json:"location"`
	Detail   string  `json:"detail" gorm:"size:255"`

	Longitude *float64   `json:"longitude"`
	Latitude  *float64   `json:"latitude"`
	Position  geom.Point `json:"position"`
}

func (*Event) TableName() string {
	return "events"
}
