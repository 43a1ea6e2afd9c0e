package chat_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spindleworks/spindle/pkg/chat"
)

var _ = Describe("Store threads", func() {
	var store *chat.Store

	BeforeEach(func() {
		store = chat.NewStore(chat.Options{UserID: "tester"})
	})

	Describe("NewStore", func() {
		It("should start with the default thread selected", func() {
			Expect(store.CurrentThreadID()).To(Equal(chat.DefaultThreadID))
			Expect(store.GetAllThreadIDs()).To(Equal([]string{chat.DefaultThreadID}))
			Expect(store.Messages()).To(BeEmpty())
		})
	})

	Describe("CreateThread", func() {
		It("should create a thread with the given id", func() {
			id := store.CreateThread("t1")

			Expect(id).To(Equal("t1"))
			Expect(store.GetAllThreadIDs()).To(ContainElement("t1"))
		})

		It("should generate an id when none is given", func() {
			id := store.CreateThread("")

			Expect(id).ToNot(BeEmpty())
			Expect(store.GetAllThreadIDs()).To(ContainElement(id))
		})

		It("should not disturb an existing thread", func() {
			store.CreateThread("t1")
			store.AddMessage(chat.NewUserMessage("hello"), false, "t1")

			store.CreateThread("t1")

			Expect(store.GetThreadMessages("t1")).To(HaveLen(1))
		})
	})

	Describe("SwitchThread", func() {
		It("should create the thread when missing", func() {
			store.SwitchThread("t2")

			Expect(store.CurrentThreadID()).To(Equal("t2"))
			Expect(store.GetAllThreadIDs()).To(ContainElement("t2"))
		})

		It("should fall back to the default thread for an empty id", func() {
			store.SwitchThread("t2")
			store.SwitchThread("")

			Expect(store.CurrentThreadID()).To(Equal(chat.DefaultThreadID))
		})
	})

	Describe("thread isolation", func() {
		It("should keep messages scoped to their thread", func() {
			store.AddMessage(chat.NewUserMessage("in default"), false, "")
			store.CreateThread("t1")
			store.AddMessage(chat.NewUserMessage("in t1"), false, "t1")

			defaultMsgs := store.GetThreadMessages(chat.DefaultThreadID)
			t1Msgs := store.GetThreadMessages("t1")

			Expect(defaultMsgs).To(HaveLen(1))
			Expect(defaultMsgs[0].Content).To(Equal("in default"))
			Expect(t1Msgs).To(HaveLen(1))
			Expect(t1Msgs[0].Content).To(Equal("in t1"))
		})
	})

	Describe("DeleteThread", func() {
		It("should delete a non-selected thread", func() {
			store.CreateThread("t1")

			Expect(store.DeleteThread("t1")).To(BeTrue())
			Expect(store.GetAllThreadIDs()).ToNot(ContainElement("t1"))
		})

		It("should refuse to delete the default thread", func() {
			Expect(store.DeleteThread(chat.DefaultThreadID)).To(BeFalse())
			Expect(store.GetAllThreadIDs()).To(ContainElement(chat.DefaultThreadID))
		})

		It("should refuse to delete the selected thread", func() {
			store.SwitchThread("t1")

			Expect(store.DeleteThread("t1")).To(BeFalse())
			Expect(store.GetAllThreadIDs()).To(ContainElement("t1"))
		})

		It("should return false for an unknown thread", func() {
			Expect(store.DeleteThread("ghost")).To(BeFalse())
		})
	})

	Describe("GetThread", func() {
		It("should return a copy of the thread", func() {
			store.AddMessage(chat.NewUserMessage("original"), false, "")

			t, ok := store.GetThread("")
			Expect(ok).To(BeTrue())
			t.Messages[0].Content = "mutated"

			Expect(store.Messages()[0].Content).To(Equal("original"))
		})

		It("should report unknown threads", func() {
			_, ok := store.GetThread("ghost")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("Subscribe", func() {
		It("should notify observers with thread snapshots", func() {
			var changes []chat.Change
			store.Subscribe(func(c chat.Change) {
				changes = append(changes, c)
			})

			store.AddMessage(chat.NewUserMessage("hello"), false, "")

			Expect(changes).To(HaveLen(1))
			Expect(changes[0].Op).To(Equal(chat.OpMessageAdded))
			Expect(changes[0].ThreadID).To(Equal(chat.DefaultThreadID))
			Expect(changes[0].Messages).To(HaveLen(1))
		})

		It("should report thread lifecycle changes", func() {
			var ops []string
			store.Subscribe(func(c chat.Change) {
				ops = append(ops, c.Op)
			})

			store.CreateThread("t1")
			store.SwitchThread("t1")
			store.SwitchThread(chat.DefaultThreadID)
			store.DeleteThread("t1")

			Expect(ops).To(Equal([]string{
				chat.OpThreadCreated,
				chat.OpThreadSwitched,
				chat.OpThreadSwitched,
				chat.OpThreadDeleted,
			}))
		})

		It("should stop notifying after unsubscribe", func() {
			count := 0
			unsubscribe := store.Subscribe(func(chat.Change) { count++ })

			store.AddMessage(chat.NewUserMessage("one"), false, "")
			unsubscribe()
			store.AddMessage(chat.NewUserMessage("two"), false, "")

			Expect(count).To(Equal(1))
		})

		It("should allow observers to read the store", func() {
			var seen int
			store.Subscribe(func(chat.Change) {
				seen = len(store.Messages())
			})

			store.AddMessage(chat.NewUserMessage("hello"), false, "")

			Expect(seen).To(Equal(1))
		})
	})

	Describe("GetThreadMetas", func() {
		It("should track the last message and order by recency", func() {
			store.CreateThread("t1")
			store.AddMessage(chat.NewUserMessage("hello there"), false, "t1")

			metas := store.GetThreadMetas()

			Expect(metas[0].ID).To(Equal("t1"))
			Expect(metas[0].LastMessage).To(Equal("hello there"))
		})

		It("should title threads from the first user message", func() {
			autoStore := chat.NewStore(chat.Options{UserID: "tester", AutoTitle: true})
			autoStore.AddMessage(chat.NewUserMessage("What is the capital of France?"), false, "")

			metas := autoStore.GetThreadMetas()

			Expect(metas[0].Title).To(Equal("What is the capital of France?"))
		})

		It("should truncate long titles", func() {
			autoStore := chat.NewStore(chat.Options{UserID: "tester", AutoTitle: true, TitleLimit: 10})
			autoStore.AddMessage(chat.NewUserMessage("a very long question about nothing much"), false, "")

			metas := autoStore.GetThreadMetas()

			Expect(metas[0].Title).To(Equal("a very lon..."))
		})
	})
})
