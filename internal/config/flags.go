package config

// Overrides carries values given on the command line. Zero values leave the
// loaded configuration untouched.
type Overrides struct {
	Addr      string
	LogPath   string
	ServerURL string
	Model     string
	Dev       bool
}

func (c *Config) Apply(o Overrides) {
	if o.Addr != "" {
		c.Server.Addr = o.Addr
	}
	if o.LogPath != "" {
		c.Log.Path = o.LogPath
	}
	if o.ServerURL != "" {
		c.Client.ServerURL = o.ServerURL
	}
	if o.Model != "" {
		c.Client.DefaultModel = o.Model
	}
	if o.Dev {
		c.Log.Dev = true
	}
}
