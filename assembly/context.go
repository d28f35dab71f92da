package assembly

// Context carries the application name and configuration through the
// assembly into every dispatcher and component.
type Context struct {
	AppName string
	Config  *Config
}

// NewContext loads the configuration file when path is non-empty.
func NewContext(appName, configPath string) (*Context, error) {
	ctx := &Context{AppName: appName, Config: NewConfig()}
	if configPath != "" {
		cfg, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		ctx.Config = cfg
	}
	return ctx, nil
}

// Attribute satisfies the dispatcher's attribute surface.
func (c *Context) Attribute(object, attribute, defval string) string {
	return c.Config.Attribute(object, attribute, defval)
}
