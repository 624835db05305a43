package connection_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/disq/connection"
	"github.com/luma/disq/protocol"
)

var _ = Describe("Node", func() {
	const nodeID = "dcb833cf0123456789abcdef"

	credentials := connection.Credentials{Host: "127.0.0.1", Port: 7711}

	newNode := func(creds connection.Credentials, t *fakeTransport) *connection.Node {
		return connection.NewNode(creds, connection.NewConn(creds, t, nil), nil)
	}

	It("says HELLO and records its identity", func() {
		t := newFakeTransport("127.0.0.1:7711", helloReply(nodeID, helloNode{nodeID, 7711}))
		node := newNode(credentials, t)

		hello, err := node.Connect()
		Expect(err).To(Succeed())
		Expect(hello.ID).To(Equal(nodeID))
		Expect(node.ID()).To(Equal(nodeID))
		Expect(node.Prefix()).To(Equal("dcb833cf"))
		Expect(node.Version()).To(Equal("1"))
		Expect(node.Hello()).To(Equal(hello))
		Expect(t.writes).To(Equal([]string{wire("HELLO")}))
	})

	It("returns the cached HELLO once connected", func() {
		t := newFakeTransport("127.0.0.1:7711", helloReply(nodeID, helloNode{nodeID, 7711}))
		node := newNode(credentials, t)

		first, err := node.Connect()
		Expect(err).To(Succeed())

		second, err := node.Connect()
		Expect(err).To(Succeed())
		Expect(second).To(BeIdenticalTo(first))
		Expect(t.connects).To(Equal(1))
		Expect(t.writes).To(HaveLen(1))
	})

	It("refuses to change identity on reconnect", func() {
		const other = "ffffffff0123456789abcdef"
		t := newFakeTransport("127.0.0.1:7711",
			helloReply(nodeID, helloNode{nodeID, 7711}),
			helloReply(other, helloNode{other, 7711}))
		node := newNode(credentials, t)

		_, err := node.Connect()
		Expect(err).To(Succeed())
		Expect(node.Disconnect()).To(Succeed())

		_, err = node.Connect()
		Expect(errors.Is(err, connection.ErrInvalidHello)).To(BeTrue())
		Expect(node.ID()).To(Equal(nodeID))
		Expect(node.Prefix()).To(Equal("dcb833cf"))
		Expect(node.IsConnected()).To(BeFalse())
	})

	It("authenticates before HELLO when it has a password", func() {
		creds := credentials
		creds.Password = "secret"

		t := newFakeTransport("127.0.0.1:7711", "+OK\r\n", helloReply(nodeID, helloNode{nodeID, 7711}))
		node := newNode(creds, t)

		_, err := node.Connect()
		Expect(err).To(Succeed())
		Expect(t.writes).To(Equal([]string{wire("AUTH", "secret"), wire("HELLO")}))
	})

	It("fails authentication on any reply but OK", func() {
		creds := credentials
		creds.Password = "secret"

		t := newFakeTransport("127.0.0.1:7711", "+NOPE\r\n")
		node := newNode(creds, t)

		_, err := node.Connect()
		Expect(connection.IsAuthenticationError(err)).To(BeTrue())
	})

	It("fails authentication when the password is rejected", func() {
		creds := credentials
		creds.Password = "wrong"

		t := newFakeTransport("127.0.0.1:7711", "-ERR invalid password\r\n")
		node := newNode(creds, t)

		_, err := node.Connect()
		Expect(connection.IsAuthenticationError(err)).To(BeTrue())
	})

	It("reports a missing password as an authentication error", func() {
		t := newFakeTransport("127.0.0.1:7711", "-NOAUTH Authentication required.\r\n")
		node := newNode(credentials, t)

		_, err := node.Connect()
		Expect(connection.IsAuthenticationError(err)).To(BeTrue())

		var serverErr *protocol.ServerError
		Expect(errors.As(err, &serverErr)).To(BeTrue())
	})

	It("returns connection errors as is", func() {
		t := newFakeTransport("127.0.0.1:7711")
		t.connectErr = errRefused
		node := newNode(credentials, t)

		_, err := node.Connect()
		Expect(protocol.IsConnectionError(err)).To(BeTrue())
		Expect(connection.IsAuthenticationError(err)).To(BeFalse())
	})

	It("keeps a resettable and a total job count", func() {
		node := connection.NewTestNode(nodeID, 1, 0)

		node.AddJobCount(3)
		node.AddJobCount(2)
		Expect(node.JobCount()).To(Equal(int64(5)))
		Expect(node.TotalJobCount()).To(Equal(int64(5)))

		node.ResetJobCount()
		node.AddJobCount(1)
		Expect(node.JobCount()).To(Equal(int64(1)))
		Expect(node.TotalJobCount()).To(Equal(int64(6)))
	})
})
