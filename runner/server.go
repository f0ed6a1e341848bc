package runner

// Server runs the service on one machine
type Server struct {
	executablePath string

	ConfigPath string
	Address    string
	DataDir    string
}

// NewServer creates a server runner; an empty path means "slog"
func NewServer(executablePath string) *Server {
	if executablePath == "" {
		executablePath = "slog"
	}
	return &Server{executablePath: executablePath}
}

// Name returns the name of the runner
func (r *Server) Name() string {
	return "server"
}

// SetExecutablePath sets the custom executable path for this runner
func (r *Server) SetExecutablePath(path string) {
	r.executablePath = path
}

// Validate checks that every flag is set
func (r *Server) Validate() error {
	switch {
	case r.ConfigPath == "":
		return invalid("server: config path is required")
	case r.Address == "":
		return invalid("server: address is required")
	case r.DataDir == "":
		return invalid("server: data dir is required")
	}
	return nil
}

// BuildCommand constructs the server command line
func (r *Server) BuildCommand() string {
	return newCommandLine(r.executablePath).
		flag("--config", r.ConfigPath).
		flag("--address", r.Address).
		flag("--data-dir", r.DataDir).
		String()
}
