package registry

import (
	"sort"
	"sync"
)

// CapabilityIndex maps (tenant, capability name) to the set of server ids
// advertising that capability. It is rebuilt incrementally on
// register/update/delete and is safe for concurrent use.
// NewCapabilityIndex should be used to create instances of CapabilityIndex.
type CapabilityIndex struct {
	mu sync.RWMutex

	// byCapability is keyed by tenant, then capability name.
	byCapability map[string]map[string]map[string]struct{}

	// byServer is keyed by tenant, mapping server id to its capability names.
	// Needed so Replace/Remove can unwind previous entries.
	byServer map[string]map[string][]string
}

// NewCapabilityIndex creates an empty capability index.
func NewCapabilityIndex() *CapabilityIndex {
	return &CapabilityIndex{
		byCapability: make(map[string]map[string]map[string]struct{}),
		byServer:     make(map[string]map[string][]string),
	}
}

// Add indexes a server's capabilities.
func (c *CapabilityIndex) Add(tenantID string, serverID string, capabilities []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addLocked(tenantID, serverID, capabilities)
}

// Remove drops every index entry for the server.
func (c *CapabilityIndex) Remove(tenantID string, serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(tenantID, serverID)
}

// Replace atomically swaps a server's indexed capabilities for a new set.
func (c *CapabilityIndex) Replace(tenantID string, serverID string, capabilities []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(tenantID, serverID)
	c.addLocked(tenantID, serverID, capabilities)
}

// Find returns the ids of servers advertising every required capability
// (AND semantics), sorted for determinism. An empty requirement set returns
// all indexed servers for the tenant: the identity element of intersection.
// An empty result is valid, not an error.
func (c *CapabilityIndex) Find(tenantID string, required []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(required) == 0 {
		servers := c.byServer[tenantID]
		ids := make([]string, 0, len(servers))
		for id := range servers {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids
	}

	caps := c.byCapability[tenantID]
	if caps == nil {
		return nil
	}

	var result map[string]struct{}
	for _, name := range required {
		set, ok := caps[name]
		if !ok || len(set) == 0 {
			return nil
		}
		if result == nil {
			result = make(map[string]struct{}, len(set))
			for id := range set {
				result[id] = struct{}{}
			}
			continue
		}
		for id := range result {
			if _, ok := set[id]; !ok {
				delete(result, id)
			}
		}
		if len(result) == 0 {
			return nil
		}
	}

	ids := make([]string, 0, len(result))
	for id := range result {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *CapabilityIndex) addLocked(tenantID string, serverID string, capabilities []string) {
	caps := c.byCapability[tenantID]
	if caps == nil {
		caps = make(map[string]map[string]struct{})
		c.byCapability[tenantID] = caps
	}
	servers := c.byServer[tenantID]
	if servers == nil {
		servers = make(map[string][]string)
		c.byServer[tenantID] = servers
	}

	for _, name := range capabilities {
		set := caps[name]
		if set == nil {
			set = make(map[string]struct{})
			caps[name] = set
		}
		set[serverID] = struct{}{}
	}
	servers[serverID] = append([]string(nil), capabilities...)
}

func (c *CapabilityIndex) removeLocked(tenantID string, serverID string) {
	caps := c.byCapability[tenantID]
	servers := c.byServer[tenantID]
	if servers == nil {
		return
	}
	for _, name := range servers[serverID] {
		if set, ok := caps[name]; ok {
			delete(set, serverID)
			if len(set) == 0 {
				delete(caps, name)
			}
		}
	}
	delete(servers, serverID)
}
