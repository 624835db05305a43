package marshal_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/disq/marshal"
)

var _ = Describe("JSON", func() {
	m := marshal.JSON{}

	It("encodes keys in order", func() {
		body, err := m.Marshal(marshal.Payload{"b": 2, "a": "x", "c.d": true})
		Expect(err).To(Succeed())
		Expect(body).To(Equal(`{"a":"x","b":2,"c.d":true}`))
	})

	It("decodes objects", func() {
		payload, err := m.Unmarshal(`{"to":"joe","retries":3,"tags":["a"]}`)
		Expect(err).To(Succeed())
		Expect(payload).To(HaveKeyWithValue("to", "joe"))
		Expect(payload).To(HaveKeyWithValue("retries", float64(3)))
		Expect(payload).To(HaveKeyWithValue("tags", []interface{}{"a"}))
	})

	It("rejects invalid bodies", func() {
		_, err := m.Unmarshal(`{"to":`)
		var marshalErr *marshal.MarshalError
		Expect(errors.As(err, &marshalErr)).To(BeTrue())
		Expect(marshalErr.Op).To(Equal("unmarshal"))
	})

	It("rejects bodies that are not objects", func() {
		_, err := m.Unmarshal(`[1,2]`)
		Expect(err).To(HaveOccurred())
	})

	It("sets raw and string values", func() {
		body, err := marshal.Set("", "user.id", "12")
		Expect(err).To(Succeed())
		body, err = marshal.Set(body, "user.name", "ann")
		Expect(err).To(Succeed())
		Expect(body).To(Equal(`{"user":{"id":12,"name":"ann"}}`))

		value, ok := marshal.Get(body, "user.name")
		Expect(ok).To(BeTrue())
		Expect(value.String()).To(Equal("ann"))

		_, ok = marshal.Get(body, "user.email")
		Expect(ok).To(BeFalse())
	})
})

var _ = Describe("CBOR", func() {
	var m *marshal.CBOR

	BeforeEach(func() {
		var err error
		m, err = marshal.NewCBOR()
		Expect(err).To(Succeed())
	})

	It("round trips payloads", func() {
		body, err := m.Marshal(marshal.Payload{"to": "joe", "nested": map[string]interface{}{"n": "x"}})
		Expect(err).To(Succeed())

		payload, err := m.Unmarshal(body)
		Expect(err).To(Succeed())
		Expect(payload).To(HaveKeyWithValue("to", "joe"))
		Expect(payload).To(HaveKeyWithValue("nested", map[string]interface{}{"n": "x"}))
	})

	It("rejects bodies that are not base64", func() {
		_, err := m.Unmarshal("not base64!")
		Expect(err).To(BeAssignableToTypeOf(&marshal.MarshalError{}))
	})
})

var _ = Describe("ByName", func() {
	It("knows json and cbor", func() {
		m, err := marshal.ByName("JSON")
		Expect(err).To(Succeed())
		Expect(m.Name()).To(Equal("json"))

		m, err = marshal.ByName("cbor")
		Expect(err).To(Succeed())
		Expect(m.Name()).To(Equal("cbor"))

		_, err = marshal.ByName("xml")
		Expect(err).To(HaveOccurred())
	})
})
