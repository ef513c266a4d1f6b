// internal/zookeeper/registry.go
package zookeeper

import (
	"context"
	"fmt"
	"net"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultRoot = "/phincommerce/services" // 所有服务实例的根节点

// Registry 基于 ZooKeeper 临时顺序节点的服务注册与发现。
// 节点路径: {root}/{service}/instance-0000000001，节点数据为 "host:port"。
type Registry struct {
	conn *zk.Conn
	root string

	next  atomic.Uint64 // 轮询下标
	mu    sync.Mutex
	nodes map[string]string // service -> 本实例创建的节点
}

// Connect 建立 ZooKeeper 会话
func Connect(servers []string, sessionTimeout time.Duration, root string) (*Registry, error) {
	if root == "" {
		root = defaultRoot
	}
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	log.Info().Strs("servers", servers).Msg("✅ Successfully connected to ZooKeeper.")
	return &Registry{conn: conn, root: root, nodes: make(map[string]string)}, nil
}

func (r *Registry) servicePath(service string) string {
	return path.Join(r.root, service)
}

// ensurePath 逐级创建持久节点，已存在时忽略
func (r *Registry) ensurePath(p string) error {
	current := ""
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		current += "/" + part
		_, err := r.conn.Create(current, nil, 0, zk.WorldACL(zk.PermAll))
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return errors.Wrapf(err, "create node %s", current)
		}
	}
	return nil
}

// Register 创建一个临时顺序节点，会话断开后自动删除
func (r *Registry) Register(service, ip string, port int) error {
	servicePath := r.servicePath(service)
	if err := r.ensurePath(servicePath); err != nil {
		return err
	}
	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	node, err := r.conn.Create(servicePath+"/instance-", []byte(addr), zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrapf(err, "register %s", service)
	}

	r.mu.Lock()
	r.nodes[service] = node
	r.mu.Unlock()

	log.Info().Str("node", node).Msgf("✅ Service '%s' registered to ZooKeeper (%s)", service, addr)
	return nil
}

func (r *Registry) Deregister(service, _ string, _ int) error {
	r.mu.Lock()
	node, ok := r.nodes[service]
	delete(r.nodes, service)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := r.conn.Delete(node, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrapf(err, "delete node %s", node)
	}
	log.Info().Str("node", node).Msgf("ℹ️ Service '%s' deregistered from ZooKeeper", service)
	return nil
}

// Resolve 在服务的实例节点间轮询
func (r *Registry) Resolve(_ context.Context, service string) (string, error) {
	servicePath := r.servicePath(service)
	children, _, err := r.conn.Children(servicePath)
	if err != nil {
		return "", errors.Wrapf(err, "list instances of %s", service)
	}
	if len(children) == 0 {
		return "", fmt.Errorf("no instance available for service '%s'", service)
	}
	sort.Strings(children)

	// 节点可能在 Children 与 Get 之间被删除，依次尝试
	start := int(r.next.Add(1) % uint64(len(children)))
	for i := 0; i < len(children); i++ {
		child := children[(start+i)%len(children)]
		data, _, err := r.conn.Get(servicePath + "/" + child)
		if errors.Is(err, zk.ErrNoNode) {
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "read instance %s", child)
		}
		return "http://" + string(data), nil
	}
	return "", fmt.Errorf("no instance available for service '%s'", service)
}

func (r *Registry) Close() {
	r.conn.Close()
}
