package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the plugin directory.
const FileName = "atc_plugin.cfg.json"

// MemoryConfig holds in-memory/JSON recorder backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite recorder backend settings
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// DSN builds the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		c.Host, c.Port, c.Username, c.Password, c.Database)
}

// StorageConfig selects and configures the event recorder backend
type StorageConfig struct {
	Type        string        `json:"type" mapstructure:"type"`
	BatchSize   int           `json:"batchSize" mapstructure:"batchSize"`
	SampleEvery int           `json:"sampleEvery" mapstructure:"sampleEvery"`
	Memory      MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite      SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
	DB          DBConfig      `json:"db" mapstructure:"db"`
	Flush       time.Duration `json:"flushInterval" mapstructure:"flushInterval"`
}

// InfluxConfig holds telemetry settings
type InfluxConfig struct {
	Enabled     bool
	URL         string
	Token       string
	Org         string
	Bucket      string
	BackupPath  string
	SampleEvery int
}

// GraylogConfig holds the optional GELF log sink settings
type GraylogConfig struct {
	Enabled bool
	Address string
}

// CANConfig holds vehicle bus output settings
type CANConfig struct {
	Enabled   bool
	Interface string
	FrameID   uint32
}

// RouteConfig is the polyline the track coordinate is laid along.
// Points are [longitude, latitude] pairs in EPSG:4326.
type RouteConfig struct {
	Name   string
	Origin float64
	Points [][]float64
}

// InterlockConfig tunes the door interlock.
type InterlockConfig struct {
	MovingSpeed float64 // km/h
}

// RestrictedConfig tunes the restricted manual speed governor. All km/h.
type RestrictedConfig struct {
	MaxSpeed         float64
	MotorCutoutSpeed float64
	ResetSpeed       float64
}

// ModeSelectorConfig tunes the guarded mode transition.
type ModeSelectorConfig struct {
	StoppedSpeed          float64 // km/h
	ChangeoverDelay       float64 // seconds
	RequireEmergencyBrake bool
}

// ATPConfig tunes the protection supervisor.
type ATPConfig struct {
	TargetRate           float64 // m/s², negative
	SafetyRate           float64 // m/s², negative
	TargetStoppingBuffer float64 // metres kept behind a preceding vehicle
	SafetyStoppingBuffer float64
	WarningDuration      float64 // seconds over the safety speed before tripping
	ForceStationStop     bool
	TargetStopOffset     float64 // metres short of the stop mark
	SafetyStopOverrun    float64 // metres past the stop mark
	InitialTargetSpeed   float64 // km/h
	InitialSafetySpeed   float64
	JumpDistance         float64 // m moved in one tick treated as a relocation
}

// ATOConfig tunes the automatic operation controller.
type ATOConfig struct {
	AccelerationPollInterval float64 // seconds
	TargetRate               float64 // m/s², negative
	NotchInterval            float64 // seconds between notch changes
	LevellingNotchInterval   float64
	BrakingTolerance         float64 // m
	LevellingSpeed           float64 // m/s
	LevellingRate            float64 // m/s², negative
	LevellingDistance        float64 // m
	LevellingTolerance       float64 // m
	CrawlSpeed               float64 // m/s
	PoweringAmount           float64 // km/h per power notch
	BrakingAmount            float64 // km/h per brake notch
	DwellTime                float64 // seconds in Ready before departing
	HoldSpeed                float64 // km/h
	LowSpeed                 float64 // km/h
	LowSpeedPowerCap         int
	StoppedSpeed             float64 // km/h
	StaleStopDistance        float64 // m
	StationJumpDistance      float64 // m
}

// DefaultInterlockConfig returns the built-in interlock tuning.
func DefaultInterlockConfig() InterlockConfig {
	return InterlockConfig{MovingSpeed: 0.2}
}

// DefaultRestrictedConfig returns the built-in RM governor tuning.
func DefaultRestrictedConfig() RestrictedConfig {
	return RestrictedConfig{
		MaxSpeed:         18,
		MotorCutoutSpeed: 16,
		ResetSpeed:       15.5,
	}
}

// DefaultModeSelectorConfig returns the built-in mode selector tuning.
func DefaultModeSelectorConfig() ModeSelectorConfig {
	return ModeSelectorConfig{
		StoppedSpeed:          0.5,
		ChangeoverDelay:       0,
		RequireEmergencyBrake: true,
	}
}

// DefaultATPConfig returns the built-in protection tuning.
func DefaultATPConfig() ATPConfig {
	return ATPConfig{
		TargetRate:           -0.5,
		SafetyRate:           -0.7,
		TargetStoppingBuffer: 75,
		SafetyStoppingBuffer: 40,
		WarningDuration:      3.0,
		ForceStationStop:     true,
		TargetStopOffset:     0,
		SafetyStopOverrun:    5,
		InitialTargetSpeed:   40,
		InitialSafetySpeed:   50,
		JumpDistance:         200,
	}
}

// DefaultATOConfig returns the built-in tuning for a C830 style stock.
func DefaultATOConfig() ATOConfig {
	return ATOConfig{
		AccelerationPollInterval: 0,
		TargetRate:               -0.65,
		NotchInterval:            0.15,
		LevellingNotchInterval:   0.10,
		BrakingTolerance:         0.5,
		LevellingSpeed:           1.0,
		LevellingRate:            -0.30,
		LevellingDistance:        3.0,
		LevellingTolerance:       0.2,
		CrawlSpeed:               0.5,
		PoweringAmount:           0.5,
		BrakingAmount:            0.1,
		DwellTime:                1.0,
		HoldSpeed:                3.0,
		LowSpeed:                 2.0,
		LowSpeedPowerCap:         1,
		StoppedSpeed:             0.3,
		StaleStopDistance:        25,
		StationJumpDistance:      200,
	}
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./atclogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.batchSize", 500)
	viper.SetDefault("storage.sampleEvery", 1)
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "atc")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "atc-metrics")
	viper.SetDefault("influx.bucket", "train_telemetry")
	viper.SetDefault("influx.backupPath", "")
	viper.SetDefault("influx.sampleEvery", 5)

	viper.SetDefault("can.enabled", false)
	viper.SetDefault("can.interface", "vcan0")
	viper.SetDefault("can.frameId", 0x210)

	viper.SetDefault("route.name", "")
	viper.SetDefault("route.origin", 0.0)

	in := DefaultInterlockConfig()
	viper.SetDefault("interlock.movingSpeed", in.MovingSpeed)

	rm := DefaultRestrictedConfig()
	viper.SetDefault("restricted.maxSpeed", rm.MaxSpeed)
	viper.SetDefault("restricted.motorCutoutSpeed", rm.MotorCutoutSpeed)
	viper.SetDefault("restricted.resetSpeed", rm.ResetSpeed)

	ms := DefaultModeSelectorConfig()
	viper.SetDefault("modeSelector.stoppedSpeed", ms.StoppedSpeed)
	viper.SetDefault("modeSelector.changeoverDelay", ms.ChangeoverDelay)
	viper.SetDefault("modeSelector.requireEmergencyBrake", ms.RequireEmergencyBrake)

	atp := DefaultATPConfig()
	viper.SetDefault("atp.targetRate", atp.TargetRate)
	viper.SetDefault("atp.safetyRate", atp.SafetyRate)
	viper.SetDefault("atp.targetStoppingBuffer", atp.TargetStoppingBuffer)
	viper.SetDefault("atp.safetyStoppingBuffer", atp.SafetyStoppingBuffer)
	viper.SetDefault("atp.warningDuration", atp.WarningDuration)
	viper.SetDefault("atp.forceStationStop", atp.ForceStationStop)
	viper.SetDefault("atp.targetStopOffset", atp.TargetStopOffset)
	viper.SetDefault("atp.safetyStopOverrun", atp.SafetyStopOverrun)
	viper.SetDefault("atp.initialTargetSpeed", atp.InitialTargetSpeed)
	viper.SetDefault("atp.initialSafetySpeed", atp.InitialSafetySpeed)
	viper.SetDefault("atp.jumpDistance", atp.JumpDistance)

	ato := DefaultATOConfig()
	viper.SetDefault("ato.accelerationPollInterval", ato.AccelerationPollInterval)
	viper.SetDefault("ato.targetRate", ato.TargetRate)
	viper.SetDefault("ato.notchInterval", ato.NotchInterval)
	viper.SetDefault("ato.levellingNotchInterval", ato.LevellingNotchInterval)
	viper.SetDefault("ato.brakingTolerance", ato.BrakingTolerance)
	viper.SetDefault("ato.levellingSpeed", ato.LevellingSpeed)
	viper.SetDefault("ato.levellingRate", ato.LevellingRate)
	viper.SetDefault("ato.levellingDistance", ato.LevellingDistance)
	viper.SetDefault("ato.levellingTolerance", ato.LevellingTolerance)
	viper.SetDefault("ato.crawlSpeed", ato.CrawlSpeed)
	viper.SetDefault("ato.poweringAmount", ato.PoweringAmount)
	viper.SetDefault("ato.brakingAmount", ato.BrakingAmount)
	viper.SetDefault("ato.dwellTime", ato.DwellTime)
	viper.SetDefault("ato.holdSpeed", ato.HoldSpeed)
	viper.SetDefault("ato.lowSpeed", ato.LowSpeed)
	viper.SetDefault("ato.lowSpeedPowerCap", ato.LowSpeedPowerCap)
	viper.SetDefault("ato.stoppedSpeed", ato.StoppedSpeed)
	viper.SetDefault("ato.staleStopDistance", ato.StaleStopDistance)
	viper.SetDefault("ato.stationJumpDistance", ato.StationJumpDistance)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStorageConfig returns the recorder backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:        viper.GetString("storage.type"),
		BatchSize:   viper.GetInt("storage.batchSize"),
		SampleEvery: viper.GetInt("storage.sampleEvery"),
		Flush:       viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
	}
}

// GetInfluxConfig returns the telemetry configuration.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled: viper.GetBool("influx.enabled"),
		URL: fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		Token:       viper.GetString("influx.token"),
		Org:         viper.GetString("influx.org"),
		Bucket:      viper.GetString("influx.bucket"),
		BackupPath:  viper.GetString("influx.backupPath"),
		SampleEvery: viper.GetInt("influx.sampleEvery"),
	}
}

// GetGraylogConfig returns the GELF sink configuration.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetCANConfig returns the vehicle bus configuration.
func GetCANConfig() CANConfig {
	return CANConfig{
		Enabled:   viper.GetBool("can.enabled"),
		Interface: viper.GetString("can.interface"),
		FrameID:   viper.GetUint32("can.frameId"),
	}
}

// GetRouteConfig returns the configured route polyline, if any.
func GetRouteConfig() (RouteConfig, error) {
	rc := RouteConfig{
		Name:   viper.GetString("route.name"),
		Origin: viper.GetFloat64("route.origin"),
	}
	if !viper.IsSet("route.points") {
		return rc, nil
	}
	if err := viper.UnmarshalKey("route.points", &rc.Points); err != nil {
		return rc, fmt.Errorf("error reading route points: %w", err)
	}
	return rc, nil
}

// GetInterlockConfig returns the interlock tuning.
func GetInterlockConfig() InterlockConfig {
	return InterlockConfig{
		MovingSpeed: viper.GetFloat64("interlock.movingSpeed"),
	}
}

// GetRestrictedConfig returns the RM governor tuning.
func GetRestrictedConfig() RestrictedConfig {
	return RestrictedConfig{
		MaxSpeed:         viper.GetFloat64("restricted.maxSpeed"),
		MotorCutoutSpeed: viper.GetFloat64("restricted.motorCutoutSpeed"),
		ResetSpeed:       viper.GetFloat64("restricted.resetSpeed"),
	}
}

// GetModeSelectorConfig returns the mode selector tuning.
func GetModeSelectorConfig() ModeSelectorConfig {
	return ModeSelectorConfig{
		StoppedSpeed:          viper.GetFloat64("modeSelector.stoppedSpeed"),
		ChangeoverDelay:       viper.GetFloat64("modeSelector.changeoverDelay"),
		RequireEmergencyBrake: viper.GetBool("modeSelector.requireEmergencyBrake"),
	}
}

// GetATPConfig returns the protection supervisor tuning.
func GetATPConfig() ATPConfig {
	return ATPConfig{
		TargetRate:           viper.GetFloat64("atp.targetRate"),
		SafetyRate:           viper.GetFloat64("atp.safetyRate"),
		TargetStoppingBuffer: viper.GetFloat64("atp.targetStoppingBuffer"),
		SafetyStoppingBuffer: viper.GetFloat64("atp.safetyStoppingBuffer"),
		WarningDuration:      viper.GetFloat64("atp.warningDuration"),
		ForceStationStop:     viper.GetBool("atp.forceStationStop"),
		TargetStopOffset:     viper.GetFloat64("atp.targetStopOffset"),
		SafetyStopOverrun:    viper.GetFloat64("atp.safetyStopOverrun"),
		InitialTargetSpeed:   viper.GetFloat64("atp.initialTargetSpeed"),
		InitialSafetySpeed:   viper.GetFloat64("atp.initialSafetySpeed"),
		JumpDistance:         viper.GetFloat64("atp.jumpDistance"),
	}
}

// GetATOConfig returns the automatic operation tuning.
func GetATOConfig() ATOConfig {
	return ATOConfig{
		AccelerationPollInterval: viper.GetFloat64("ato.accelerationPollInterval"),
		TargetRate:               viper.GetFloat64("ato.targetRate"),
		NotchInterval:            viper.GetFloat64("ato.notchInterval"),
		LevellingNotchInterval:   viper.GetFloat64("ato.levellingNotchInterval"),
		BrakingTolerance:         viper.GetFloat64("ato.brakingTolerance"),
		LevellingSpeed:           viper.GetFloat64("ato.levellingSpeed"),
		LevellingRate:            viper.GetFloat64("ato.levellingRate"),
		LevellingDistance:        viper.GetFloat64("ato.levellingDistance"),
		LevellingTolerance:       viper.GetFloat64("ato.levellingTolerance"),
		CrawlSpeed:               viper.GetFloat64("ato.crawlSpeed"),
		PoweringAmount:           viper.GetFloat64("ato.poweringAmount"),
		BrakingAmount:            viper.GetFloat64("ato.brakingAmount"),
		DwellTime:                viper.GetFloat64("ato.dwellTime"),
		HoldSpeed:                viper.GetFloat64("ato.holdSpeed"),
		LowSpeed:                 viper.GetFloat64("ato.lowSpeed"),
		LowSpeedPowerCap:         viper.GetInt("ato.lowSpeedPowerCap"),
		StoppedSpeed:             viper.GetFloat64("ato.stoppedSpeed"),
		StaleStopDistance:        viper.GetFloat64("ato.staleStopDistance"),
		StationJumpDistance:      viper.GetFloat64("ato.stationJumpDistance"),
	}
}
