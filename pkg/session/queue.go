// ABOUTME: Pending queue for play requests issued before the registry starts
// ABOUTME: FIFO buffer drained once by Registry.Start
package session

// Request is a buffered play or mirror request
type Request struct {
	Config Config
	ID     string
	Group  string

	// Mirror marks a replicated start received from the authoritative peer
	Mirror bool
}

// Pending buffers requests in arrival order
type Pending struct {
	requests []Request
}

// Push appends a request
func (p *Pending) Push(req Request) {
	p.requests = append(p.requests, req)
}

// Remove drops queued requests carrying an explicit id
func (p *Pending) Remove(id string) int {
	kept := p.requests[:0]
	removed := 0
	for _, req := range p.requests {
		if req.ID != "" && req.ID == id {
			removed++
			continue
		}
		kept = append(kept, req)
	}
	p.requests = kept
	return removed
}

// Drain returns all queued requests and empties the queue
func (p *Pending) Drain() []Request {
	out := p.requests
	p.requests = nil
	return out
}

// Len returns the number of queued requests
func (p *Pending) Len() int {
	return len(p.requests)
}
