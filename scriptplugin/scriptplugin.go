// Package scriptplugin hosts the user-scriptable order=script filter as a
// subprocess, implementing scanner.ScriptFilter over the contract spec.md
// §4.4 describes: "filter(entry_meta) -> bool and order_key(entry_meta) ->
// u64". The subprocess talks net/rpc over a hashicorp/go-plugin connection;
// entry_meta records are msgpack-encoded on the wire.
//
// Grounded on the pack's nydusify hook plugin
// (contrib/nydusify/pkg/hook/hook.go): same handshake/RPC/RPCServer/Plugin
// quartet, generalized from its BeforePush/AfterPush two-method contract to
// DwarFS's Filter/OrderKey pair, and from JSON struct tags to msgpack
// (kloset's own wire format) for the entry_meta payload.
package scriptplugin

import (
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dwarfs-go/dwarfs/scanner"
)

var handshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "DWARFS_SCRIPT_PLUGIN",
	MagicCookieValue: "dwarfs-script-plugin",
}

const pluginKey = "order_script"

// wireMeta is scanner.EntryMeta's wire shape: msgpack rather than the
// in-process struct, so the contract stays stable even if EntryMeta grows
// unexported-by-convention fields later.
type wireMeta struct {
	Path string `msgpack:"path"`
	Size int64  `msgpack:"size"`
	Mode uint32 `msgpack:"mode"`
}

func toWire(m scanner.EntryMeta) wireMeta {
	return wireMeta{Path: m.Path, Size: m.Size, Mode: m.Mode}
}

// Filterer is the interface a script plugin implementation satisfies,
// hosted via Serve on the subprocess side.
type Filterer interface {
	Filter(meta scanner.EntryMeta) (bool, error)
	OrderKey(meta scanner.EntryMeta) (uint64, error)
}

// filterRPC is the client-side stub, dispensed to the host process.
type filterRPC struct{ client *rpc.Client }

func (f *filterRPC) Filter(meta scanner.EntryMeta) (bool, error) {
	payload, err := msgpack.Marshal(toWire(meta))
	if err != nil {
		return false, err
	}
	var resp bool
	err = f.client.Call("Plugin.Filter", payload, &resp)
	return resp, err
}

func (f *filterRPC) OrderKey(meta scanner.EntryMeta) (uint64, error) {
	payload, err := msgpack.Marshal(toWire(meta))
	if err != nil {
		return 0, err
	}
	var resp uint64
	err = f.client.Call("Plugin.OrderKey", payload, &resp)
	return resp, err
}

// filterRPCServer is the subprocess-side net/rpc server, unmarshaling the
// msgpack payload before calling into the real Filterer implementation.
type filterRPCServer struct {
	Impl Filterer
}

func (s *filterRPCServer) Filter(payload []byte, resp *bool) error {
	var w wireMeta
	if err := msgpack.Unmarshal(payload, &w); err != nil {
		return err
	}
	ok, err := s.Impl.Filter(scanner.EntryMeta{Path: w.Path, Size: w.Size, Mode: w.Mode})
	*resp = ok
	return err
}

func (s *filterRPCServer) OrderKey(payload []byte, resp *uint64) error {
	var w wireMeta
	if err := msgpack.Unmarshal(payload, &w); err != nil {
		return err
	}
	key, err := s.Impl.OrderKey(scanner.EntryMeta{Path: w.Path, Size: w.Size, Mode: w.Mode})
	*resp = key
	return err
}

// filterPlugin implements plugin.Plugin, bridging go-plugin's MuxBroker RPC
// transport to filterRPC/filterRPCServer.
type filterPlugin struct {
	Impl Filterer
}

func (p *filterPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &filterRPCServer{Impl: p.Impl}, nil
}

func (filterPlugin) Client(_ *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &filterRPC{client: c}, nil
}

// Serve runs impl as a script plugin subprocess; a user's filter script
// binary calls this from its own main().
func Serve(impl Filterer) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         map[string]plugin.Plugin{pluginKey: &filterPlugin{Impl: impl}},
	})
}

// Client hosts a script plugin binary at path and returns a
// scanner.ScriptFilter backed by it, plus a Close func the caller must
// invoke once scanning is done to terminate the subprocess.
func Client(path string) (scanner.ScriptFilter, func(), error) {
	c := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: handshakeConfig,
		Plugins:         map[string]plugin.Plugin{pluginKey: &filterPlugin{}},
		Cmd:             exec.Command(path),
		Logger:          hclog.New(&hclog.LoggerOptions{Level: hclog.Error, Name: "scriptplugin"}),
	})

	rpcClient, err := c.Client()
	if err != nil {
		c.Kill()
		return nil, nil, err
	}

	raw, err := rpcClient.Dispense(pluginKey)
	if err != nil {
		c.Kill()
		return nil, nil, err
	}

	return raw.(scanner.ScriptFilter), c.Kill, nil
}
