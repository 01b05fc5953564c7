package config

import (
	"fmt"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/fancy"
)

// String returns a pretty-printed tree representation of the config
func (c *Config) String() string {
	t := fancy.RootTree(fmt.Sprintf("Payscript Config (%s)", c.Version))

	logging := fancy.BranchNode("Logging", "")
	logging.Child(fancy.KeyValue("Format", c.Logging.Format))
	logging.Child(fancy.KeyValue("Level", c.Logging.Level))
	logging.Child(fancy.KeyValue("Output", c.Logging.Output))
	t.Child(logging)

	comp := fancy.BranchNode("Compiler", "")
	comp.Child(fancy.KeyValue("Language", c.Compiler.LanguageVersion))
	comp.Child(fancy.KeyValue("References", strings.Join(c.Compiler.References, ", ")))
	comp.Child(fancy.KeyValue("Product", c.Compiler.Product+" "+c.Compiler.AssemblyVersion))
	t.Child(comp)

	cacheNote := ""
	if c.Cache.Timeout == 0 {
		cacheNote = "(disabled)"
	}
	cache := fancy.BranchNode("Cache", cacheNote)
	if c.Cache.Timeout > 0 {
		cache.Child(fancy.KeyValue("Timeout", c.Cache.Timeout))
	}
	if c.Cache.MaxExecutionSteps > 0 {
		cache.Child(fancy.KeyValue("Max steps", c.Cache.MaxExecutionSteps))
	}
	t.Child(cache)

	host := fancy.BranchNode("Host", "")
	host.Child(fancy.KeyValue("Execution timeout", c.Host.ExecutionTimeout))
	host.Child(fancy.KeyValue("Min log level", c.Host.MinLogLevel))
	t.Child(host)

	st := fancy.BranchNode("Store", fmt.Sprintf("(%d backends)", len(c.Store.Backends)))
	for _, backend := range c.Store.Backends {
		switch backend {
		case BackendBolt:
			st.Child(fancy.KeyValue("bolt", fancy.PathText(c.Store.Bolt.Path)))
		case BackendRedis:
			st.Child(fancy.KeyValue("redis", fmt.Sprintf("%s db=%d ttl=%s",
				c.Store.Redis.Address, c.Store.Redis.DB, c.Store.Redis.TTL)))
		case BackendSQL:
			st.Child(fancy.KeyValue("sql", c.Store.SQL.Driver))
		}
	}
	t.Child(st)

	if c.Admin.Address == "" {
		t.Child(fancy.BranchNode("Admin", "(disabled)"))
	} else {
		admin := fancy.BranchNode("Admin", "")
		admin.Child(fancy.KeyValue("Address", c.Admin.Address))
		t.Child(admin)
	}

	return t.String()
}
