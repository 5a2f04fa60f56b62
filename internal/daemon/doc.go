// Package daemon talks to the local cjdroute.
//
// Client is the admin RPC client. Every call fetches a cookie, signs the
// request with sha256(password + cookie) and then with the sha256 of the
// whole bencoded request:
//
//	client, err := daemon.Dial(ctx, "127.0.0.1:11234", "NONE")
//	if status := client.CheckConnection(ctx); status != daemon.AdminStatusOK {
//		return status.Error()
//	}
//	self, err := client.NodeInfo(ctx)
//
// Link is the UDP socket the router forwards CJDHT and switch control
// frames to once it has been registered with Client.Attach. It implements
// the crawl package's Sender and feeds received frames to a session.
package daemon
