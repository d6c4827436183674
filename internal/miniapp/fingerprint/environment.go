package fingerprint

// Environment exposes the device signals used by the fallback hash.
type Environment interface {
	UserAgent() string
	Language() string
	ScreenSize() (width, height int)
	TimezoneOffset() int
	StorageFlags() StorageFlags
	// CanvasSnapshot renders a fixed scene and returns its encoded pixels.
	CanvasSnapshot() (string, error)
}

type staticEnvironment struct {
	in Inputs
}

// NewStaticEnvironment returns an Environment serving fixed inputs.
func NewStaticEnvironment(in Inputs) Environment {
	return staticEnvironment{in: in}
}

func (e staticEnvironment) UserAgent() string               { return e.in.UserAgent }
func (e staticEnvironment) Language() string                { return e.in.Language }
func (e staticEnvironment) ScreenSize() (int, int)          { return e.in.ScreenWidth, e.in.ScreenHeight }
func (e staticEnvironment) TimezoneOffset() int             { return e.in.TimezoneOffset }
func (e staticEnvironment) StorageFlags() StorageFlags      { return e.in.Storage }
func (e staticEnvironment) CanvasSnapshot() (string, error) { return e.in.Canvas, nil }

// ReadInputs samples env. A failing or panicking canvas yields an empty snapshot.
func ReadInputs(env Environment) Inputs {
	if env == nil {
		return Inputs{}
	}
	width, height := env.ScreenSize()
	return Inputs{
		UserAgent:      env.UserAgent(),
		Language:       env.Language(),
		ScreenWidth:    width,
		ScreenHeight:   height,
		TimezoneOffset: env.TimezoneOffset(),
		Storage:        env.StorageFlags(),
		Canvas:         canvasSnapshot(env),
	}
}

func canvasSnapshot(env Environment) (snapshot string) {
	defer func() {
		if r := recover(); r != nil {
			snapshot = ""
		}
	}()
	s, err := env.CanvasSnapshot()
	if err != nil {
		return ""
	}
	return s
}
