package hostclient

// SwarmNode is a discovered cluster member.
type SwarmNode struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`
	Role     string `json:"role"` // "manager" | "worker"
	Status   string `json:"status"`
	Manager  bool   `json:"manager"`
}

// SwarmService is a Swarm-managed replicated workload.
type SwarmService struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	Stack   string `json:"stack,omitempty"`
	Version uint64 `json:"version"`
}

// SwarmTask binds a service to a node and (once running) a container.
type SwarmTask struct {
	ID           string `json:"id"`
	ServiceID    string `json:"service_id"`
	ServiceName  string `json:"service_name"`
	NodeID       string `json:"node_id"`
	ContainerID  string `json:"container_id,omitempty"`
	Slot         int    `json:"slot"`
	DesiredState string `json:"desired_state"`
	State        string `json:"state"`
	Stack        string `json:"stack,omitempty"`
	Image        string `json:"image,omitempty"`
}

// StackService names a service discovered under a Swarm stack namespace,
// along with the fields the Query API and topology discovery both need
// (image for display, replica count for health summaries).
type StackService struct {
	Stack       string `json:"stack"`
	ServiceName string `json:"service_name"`
	ServiceID   string `json:"service_id"`
	Image       string `json:"image"`
	Replicas    int    `json:"replicas"`
}
