package session

// ServerBinding holds the server coordinates established by a successful
// subscription. Created on SUBS_ACK, mutated once on INFO_ACK to add
// ServerTCPPort, destroyed on disconnection.
type ServerBinding struct {
	ServerMAC     string
	ServerIP      string
	RND           string
	ServerTCPPort string
}

// MatchesCredentials reports whether a received packet's (mac, rnd,
// source ip) triple matches this binding's credentials.
func (b *ServerBinding) MatchesCredentials(mac, rnd, srcIP string) bool {
	if b == nil {
		return false
	}
	return mac == b.ServerMAC && rnd == b.RND && srcIP == b.ServerIP
}
