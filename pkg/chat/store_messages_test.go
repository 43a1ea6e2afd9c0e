package chat_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spindleworks/spindle/pkg/chat"
)

var _ = Describe("Store messages", func() {
	var store *chat.Store

	BeforeEach(func() {
		store = chat.NewStore(chat.Options{UserID: "tester"})
	})

	Describe("AddMessage", func() {
		It("should append to the current thread by default", func() {
			msg := store.AddMessage(chat.NewUserMessage("hello"), false, "")

			Expect(store.Messages()).To(HaveLen(1))
			Expect(store.Messages()[0].ID).To(Equal(msg.ID))
		})

		It("should create an unknown target thread", func() {
			store.AddMessage(chat.NewUserMessage("hi"), false, "brand-new")

			Expect(store.GetAllThreadIDs()).To(ContainElement("brand-new"))
			Expect(store.GetThreadMessages("brand-new")).To(HaveLen(1))
		})

		It("should fill in id, timestamp and type when missing", func() {
			msg := store.AddMessage(chat.Message{Role: chat.RoleUser, Content: "raw"}, false, "")

			Expect(msg.ID).ToNot(BeEmpty())
			Expect(msg.CreatedAt).ToNot(BeZero())
			Expect(msg.Type).To(Equal(chat.TypeText))
		})
	})

	Describe("AppendToLatest", func() {
		It("should start a new assistant message in an empty thread", func() {
			msg := store.AppendToLatest("Hel", false, "")

			Expect(msg.Role).To(Equal(chat.RoleAssistant))
			Expect(store.Messages()).To(HaveLen(1))
			Expect(store.Messages()[0].Content).To(Equal("Hel"))
		})

		It("should extend the latest assistant text message in place", func() {
			store.AppendToLatest("Hel", false, "")
			msg := store.AppendToLatest("lo", false, "")

			Expect(store.Messages()).To(HaveLen(1))
			Expect(store.Messages()[0].Content).To(Equal("Hello"))
			Expect(msg.Content).To(Equal("Hello"))
		})

		It("should start a new message after a user message", func() {
			store.AppendToLatest("first", false, "")
			store.AddMessage(chat.NewUserMessage("interrupt"), false, "")
			store.AppendToLatest("second", false, "")

			msgs := store.Messages()
			Expect(msgs).To(HaveLen(3))
			Expect(msgs[0].Content).To(Equal("first"))
			Expect(msgs[2].Content).To(Equal("second"))
		})

		It("should not extend a structured assistant message", func() {
			store.AddMessage(chat.NewObjectMessage(map[string]any{"type": "card"}), false, "")
			store.AppendToLatest("text", false, "")

			msgs := store.Messages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[1].Content).To(Equal("text"))
		})
	})

	Describe("UpdateMessage", func() {
		It("should apply the mutation and keep the id", func() {
			msg := store.AddMessage(chat.NewAssistantMessage("draft"), false, "")

			ok := store.UpdateMessage(msg.ID, func(m *chat.Message) {
				m.Content = "final"
				m.ID = "tampered"
			}, false, "")

			Expect(ok).To(BeTrue())
			updated, found := store.GetMessageByID(msg.ID, "")
			Expect(found).To(BeTrue())
			Expect(updated.Content).To(Equal("final"))
		})

		It("should return false for an unknown message", func() {
			Expect(store.UpdateMessage("ghost", func(m *chat.Message) {}, false, "")).To(BeFalse())
		})

		It("should return false for an unknown thread", func() {
			Expect(store.UpdateMessage("any", func(m *chat.Message) {}, false, "ghost")).To(BeFalse())
		})
	})

	Describe("DeleteMessage", func() {
		It("should remove the message", func() {
			msg := store.AddMessage(chat.NewUserMessage("bye"), false, "")

			Expect(store.DeleteMessage(msg.ID, false, "")).To(BeTrue())
			Expect(store.Messages()).To(BeEmpty())
		})

		It("should return false for an unknown message", func() {
			Expect(store.DeleteMessage("ghost", false, "")).To(BeFalse())
		})
	})

	Describe("ClearMessages", func() {
		It("should empty the thread but keep it", func() {
			store.AddMessage(chat.NewUserMessage("one"), false, "")
			store.AddMessage(chat.NewAssistantMessage("two"), false, "")

			store.ClearMessages(false, "")

			Expect(store.Messages()).To(BeEmpty())
			Expect(store.GetAllThreadIDs()).To(ContainElement(chat.DefaultThreadID))
		})
	})

	Describe("queries", func() {
		BeforeEach(func() {
			store.AddMessage(chat.NewSystemMessage("be brief"), false, "")
			store.AddMessage(chat.NewUserMessage("question"), false, "")
			store.AddMessage(chat.NewAssistantMessage("answer"), false, "")
		})

		It("should find messages by id", func() {
			msgs := store.Messages()
			found, ok := store.GetMessageByID(msgs[1].ID, "")

			Expect(ok).To(BeTrue())
			Expect(found.Content).To(Equal("question"))
		})

		It("should filter messages by role", func() {
			assistants := store.GetMessagesByRole(chat.RoleAssistant, "")

			Expect(assistants).To(HaveLen(1))
			Expect(assistants[0].Content).To(Equal("answer"))
		})

		It("should return empty slices for unknown threads", func() {
			Expect(store.GetThreadMessages("ghost")).To(BeEmpty())
			Expect(store.GetMessagesByRole(chat.RoleUser, "ghost")).To(BeEmpty())
		})
	})
})
