// Package store 提供向量存储抽象及其三种实现：
//   - chromem: 进程内存储（可选持久化目录），本地运行和测试的默认后端
//   - qdrant: 通过 REST API 访问 Qdrant
//   - milvus: 通过 Milvus v2 SDK 访问 Milvus
//
// 所有实现的网络或可用性错误都归类为 ErrStoreUnavailable，且不做重试。
package store
