package config

const (
	defaultConfigPath    = "~/.config/automator/config.toml"
	defaultDBRoot        = "~/.local/share/automator/db"
	defaultSourceRoot    = "~/data/raw"
	defaultLogDir        = "~/.local/share/automator/logs"
	defaultHistoryName   = "history.db"
	defaultProtocol      = "r1"
	defaultWorkers       = 1
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultIndexTemplate = "protocols/%s.json"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DBRoot:     defaultDBRoot,
			SourceRoot: defaultSourceRoot,
			LogDir:     defaultLogDir,
		},
		Automation: Automation{
			Protocol:  defaultProtocol,
			Workers:   defaultWorkers,
			MathTasks: defaultMathTasks(),
			Experiments: map[string][]string{
				"r1": {
					"FR1", "FR2", "FR3",
					"catFR1", "catFR2", "catFR3",
					"PAL1", "PAL2", "PAL3",
					"TH1", "TH2", "TH3",
					"PS1", "PS2", "PS3",
				},
			},
		},
		Sources: Sources{
			Montage:       []string{"{code}/tal/VOX_coords_mother.txt", "{code}/docs/jacksheet.txt"},
			BuildEvents:   []string{"{code}/behavioral/{experiment}/session_{original_session}/session.log"},
			BuildEphys:    []string{"{code}/raw/{experiment}_{original_session}/*"},
			ConvertEvents: []string{"{code}/behavioral/{experiment}/session_{original_session}/*_events.mat"},
			ConvertEphys:  []string{"{code}/eeg.noreref/{code}_{experiment}_{original_session}_*"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultMathTasks() []string {
	return []string{
		"FR1", "FR2", "FR3",
		"catFR1", "catFR2", "catFR3",
		"PAL1", "PAL2", "PAL3",
		"ltpFR", "ltpFR2",
	}
}
