package connection_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/disq/command"
	"github.com/luma/disq/connection"
	"github.com/luma/disq/protocol"
)

var _ = Describe("Conn", func() {
	credentials := connection.Credentials{Host: "127.0.0.1", Port: 7711}

	It("writes the encoded command and parses the reply", func() {
		t := newFakeTransport("127.0.0.1:7711", ":3\r\n")
		conn := connection.NewConn(credentials, t, nil)
		Expect(conn.Connect()).To(Succeed())

		cmd, err := command.NewQLen("q")
		Expect(err).To(Succeed())

		result, err := conn.Execute(cmd)
		Expect(err).To(Succeed())
		Expect(result).To(Equal(int64(3)))
		Expect(t.writes).To(Equal([]string{wire("QLEN", "q")}))
	})

	It("refuses to execute before connecting", func() {
		t := newFakeTransport("127.0.0.1:7711", ":3\r\n")
		conn := connection.NewConn(credentials, t, nil)

		cmd, err := command.NewQLen("q")
		Expect(err).To(Succeed())

		_, err = conn.Execute(cmd)
		Expect(err).To(MatchError(connection.ErrNotConnected))
		Expect(t.writes).To(BeEmpty())
	})

	It("waits for data while a blocking command runs", func() {
		t := newFakeTransport("127.0.0.1:7711", "*-1\r\n")
		conn := connection.NewConn(credentials, t, nil)
		Expect(conn.Connect()).To(Succeed())

		cmd, err := command.NewGetJob([]string{"q"}, command.Options{"timeout": 100})
		Expect(err).To(Succeed())

		result, err := conn.Execute(cmd)
		Expect(err).To(Succeed())
		Expect(result).To(BeEmpty())
		Expect(t.waitForData).To(Equal([]bool{true, false}))
	})

	It("returns server errors and stays connected", func() {
		t := newFakeTransport("127.0.0.1:7711", "-PAUSED Queue paused in input, try later\r\n")
		conn := connection.NewConn(credentials, t, nil)
		Expect(conn.Connect()).To(Succeed())

		cmd, err := command.NewAddJob("q", "body", nil)
		Expect(err).To(Succeed())

		_, err = conn.Execute(cmd)

		var pausedErr *protocol.PausedError
		Expect(errors.As(err, &pausedErr)).To(BeTrue())
		Expect(conn.IsConnected()).To(BeTrue())
	})

	It("drops the connection when the stream ends", func() {
		t := newFakeTransport("127.0.0.1:7711", "$10\r\nshort")
		conn := connection.NewConn(credentials, t, nil)
		Expect(conn.Connect()).To(Succeed())

		cmd, err := command.NewInfo()
		Expect(err).To(Succeed())

		_, err = conn.Execute(cmd)
		Expect(protocol.IsConnectionError(err)).To(BeTrue())
		Expect(conn.IsConnected()).To(BeFalse())
	})

	It("reports replies of the wrong shape", func() {
		t := newFakeTransport("127.0.0.1:7711", "+OK\r\n")
		conn := connection.NewConn(credentials, t, nil)
		Expect(conn.Connect()).To(Succeed())

		cmd, err := command.NewQLen("q")
		Expect(err).To(Succeed())

		_, err = conn.Execute(cmd)
		Expect(command.IsInvalidResponse(err)).To(BeTrue())
	})
})

var _ = Describe("Credentials", func() {
	It("parses servers", func() {
		creds, err := connection.ParseServer("disque.local:7712")
		Expect(err).To(Succeed())
		Expect(creds.Host).To(Equal("disque.local"))
		Expect(creds.Port).To(Equal(7712))

		creds, err = connection.ParseServer("disque.local")
		Expect(err).To(Succeed())
		Expect(creds.Port).To(Equal(connection.DefaultPort))

		creds, err = connection.ParseServer(":7713")
		Expect(err).To(Succeed())
		Expect(creds.Address()).To(Equal("127.0.0.1:7713"))
	})

	It("rejects bad ports", func() {
		_, err := connection.ParseServer("host:abc")
		Expect(err).To(HaveOccurred())

		_, err = connection.ParseServer("host:70000")
		Expect(err).To(HaveOccurred())

		_, err = connection.ParseServer(" ")
		Expect(err).To(HaveOccurred())
	})

	It("applies the base credentials to every server", func() {
		base := connection.Credentials{Password: "secret"}
		servers, err := connection.ParseServers([]string{"a:1", "b:2"}, base)
		Expect(err).To(Succeed())
		Expect(servers).To(HaveLen(2))
		Expect(servers[1].Password).To(Equal("secret"))
		Expect(servers[1].Address()).To(Equal("b:2"))
	})
})
